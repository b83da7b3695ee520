package shared

import "encoding/json"

// Default and ceiling page sizes, per the list-operation conventions.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// ListParams are the cross-cutting input fields recognized by every
// list-style operation.
type ListParams struct {
	ReturnOnlyIDs bool     `json:"returnOnlyIds,omitempty"`
	Compact       bool     `json:"compact,omitempty"`
	Fields        []string `json:"fields,omitempty"`
	PageSize      int      `json:"pageSize,omitempty"`
	PageToken     string   `json:"pageToken,omitempty"`
}

// MutationParams are the cross-cutting input fields recognized by every
// mutating operation.
type MutationParams struct {
	DryRun       bool   `json:"dryRun,omitempty"`
	ConfirmToken string `json:"confirmToken,omitempty"`
}

// Arguments is the raw parameter object of a single invocation.
type Arguments map[string]interface{}

// ListParamsFrom extracts the list-shaping fields from raw arguments.
// Unknown fields are left for the operation's own schema to judge.
func ListParamsFrom(args Arguments) (ListParams, error) {
	return extract[ListParams](args)
}

// MutationParamsFrom extracts the mutation control fields from raw arguments.
func MutationParamsFrom(args Arguments) (MutationParams, error) {
	return extract[MutationParams](args)
}

func extract[T any](args Arguments) (T, error) {
	var out T
	if args == nil {
		return out, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
