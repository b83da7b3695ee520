package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// OperationKind classifies what an operation does to the backing system.
// Danger is derived from the kind, never inferred from the name.
type OperationKind string

const (
	KindRead      OperationKind = "read"
	KindWrite     OperationKind = "write"
	KindDelete    OperationKind = "delete"
	KindComposite OperationKind = "composite"
)

// OperationDescriptor declares a named operation. Descriptors are
// registered before the gateway serves traffic and are immutable after.
//
// Names follow the {resource}_{action} convention, e.g. contacts_list.
type OperationDescriptor struct {
	Name        string
	Description string
	Kind        OperationKind
	// Idempotent marks a mutating operation as safe to repeat. Non-idempotent
	// writes are treated as destructive, like deletes.
	Idempotent bool
	// InputSchema is a JSON Schema for the operation's arguments, including
	// any cross-cutting fields the operation accepts. Empty means no
	// validation beyond the gateway's own guardrails.
	InputSchema json.RawMessage
	// Handler executes the operation.
	Handler Handler
	// Preview computes the affected scope without mutating state. Required
	// for destructive operations; optional for the rest.
	Preview PreviewFunc
}

// Mutating reports whether the operation can change state.
func (d *OperationDescriptor) Mutating() bool {
	return d.Kind != KindRead
}

// Destructive reports whether the operation needs confirmation handling:
// deletes, and writes that cannot be safely repeated.
func (d *OperationDescriptor) Destructive() bool {
	switch d.Kind {
	case KindDelete:
		return true
	case KindWrite, KindComposite:
		return !d.Idempotent
	default:
		return false
	}
}

// Summary is the caller-visible projection of a descriptor.
func (d *OperationDescriptor) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":          d.Name,
		"description": d.Description,
		"kind":        string(d.Kind),
		"idempotent":  d.Idempotent,
		"dangerous":   d.Destructive(),
	}
}

func (d *OperationDescriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("operation name cannot be empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("handler cannot be nil for operation '%s'", d.Name)
	}
	switch d.Kind {
	case KindRead, KindWrite, KindDelete, KindComposite:
	default:
		return fmt.Errorf("operation '%s' has unknown kind '%s'", d.Name, d.Kind)
	}
	if d.Destructive() && d.Preview == nil {
		return fmt.Errorf("destructive operation '%s' must declare a preview", d.Name)
	}
	return nil
}

// compileSchema turns the declared input schema into a validator. A nil
// schema compiles to nil, meaning no schema validation.
func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema for '%s': %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource for '%s': %w", name, err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for '%s': %w", name, err)
	}
	return schema, nil
}
