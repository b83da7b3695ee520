package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/gateway"
	"github.com/gate4ai/toolgate/shared"
)

// Store is an in-memory contact book used by the example operations.
type Store struct {
	mu       sync.RWMutex
	contacts map[string]map[string]interface{}
	logger   *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	s := &Store{
		contacts: make(map[string]map[string]interface{}),
		logger:   logger.With(zap.String("component", "contactStore")),
	}
	for i := 1; i <= 12; i++ {
		id := fmt.Sprintf("c-%03d", i)
		s.contacts[id] = map[string]interface{}{
			"id":    id,
			"name":  fmt.Sprintf("Contact %d", i),
			"email": fmt.Sprintf("contact%d@example.com", i),
			"notes": fmt.Sprintf("Imported contact number %d with a long free-form note kept around to demonstrate compact shaping of verbose text fields.", i),
		}
	}
	return s
}

// Window implements the page source over contacts sorted by id. A non-empty
// filter matches name substrings case-insensitively.
func (s *Store) Window(_ context.Context, filter string, offset, limit int) ([]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.contacts))
	for id, c := range s.contacts {
		if filter != "" {
			name, _ := c["name"].(string)
			if !strings.Contains(strings.ToLower(name), strings.ToLower(filter)) {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	window := make([]map[string]interface{}, 0, end-offset)
	for _, id := range ids[offset:end] {
		window = append(window, clone(s.contacts[id]))
	}
	return window, nil
}

func (s *Store) get(id string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, false
	}
	return clone(c), true
}

func (s *Store) put(c map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c["id"].(string)] = c
}

func (s *Store) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[id]; !ok {
		return false
	}
	delete(s.contacts, id)
	return true
}

func clone(c map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Register adds the contact operations to the gateway.
func Register(g *gateway.Gateway, store *Store) error {
	descriptors := []*gateway.OperationDescriptor{
		{
			Name:        "contacts_list",
			Description: "Lists contacts, optionally filtered by a name substring",
			Kind:        gateway.KindRead,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query":         {"type": "string"},
					"pageSize":      {"type": "integer", "minimum": 1},
					"pageToken":     {"type": "string"},
					"returnOnlyIds": {"type": "boolean"},
					"compact":       {"type": "boolean"},
					"fields":        {"type": "array", "items": {"type": "string"}}
				}
			}`),
			Handler: func(ctx context.Context, tc *gateway.ToolContext) (map[string]interface{}, error) {
				query, _ := tc.Args["query"].(string)
				page, err := tc.Paginate(ctx, store, query)
				if err != nil {
					return nil, err
				}
				out := map[string]interface{}{"contacts": page.Items}
				if page.NextPageToken != "" {
					out["nextPageToken"] = page.NextPageToken
				}
				if page.MayBeStale {
					out["mayBeStale"] = true
				}
				return out, nil
			},
		},
		{
			Name:        "contacts_get",
			Description: "Fetches a single contact by id",
			Kind:        gateway.KindRead,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {"id": {"type": "string", "minLength": 1}},
				"required": ["id"]
			}`),
			Handler: func(_ context.Context, tc *gateway.ToolContext) (map[string]interface{}, error) {
				id, _ := tc.Args["id"].(string)
				c, ok := store.get(id)
				if !ok {
					return nil, shared.NewError(shared.ErrorNotFound, "contact not found: %s", id)
				}
				return tc.Shape(c), nil
			},
		},
		{
			Name:        "contacts_create",
			Description: "Creates a contact",
			Kind:        gateway.KindWrite,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"name":  {"type": "string", "minLength": 1},
					"email": {"type": "string"},
					"notes": {"type": "string"}
				},
				"required": ["name"]
			}`),
			Preview: func(_ context.Context, _ *gateway.ToolContext) (*gateway.Scope, error) {
				return &gateway.Scope{AffectedCount: 1, Description: "create 1 contact"}, nil
			},
			Handler: func(_ context.Context, tc *gateway.ToolContext) (map[string]interface{}, error) {
				c := map[string]interface{}{
					"id":    uuid.NewString(),
					"name":  tc.Args["name"],
					"email": tc.Args["email"],
					"notes": tc.Args["notes"],
				}
				store.put(c)
				return tc.Shape(c), nil
			},
		},
		{
			Name:        "contacts_delete",
			Description: "Deletes a single contact by id",
			Kind:        gateway.KindDelete,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {"id": {"type": "string", "minLength": 1}},
				"required": ["id"]
			}`),
			Preview: func(_ context.Context, tc *gateway.ToolContext) (*gateway.Scope, error) {
				id, _ := tc.Args["id"].(string)
				if _, ok := store.get(id); !ok {
					return nil, shared.NewError(shared.ErrorNotFound, "contact not found: %s", id)
				}
				return &gateway.Scope{AffectedCount: 1, Description: "delete contact " + id}, nil
			},
			Handler: func(_ context.Context, tc *gateway.ToolContext) (map[string]interface{}, error) {
				id, _ := tc.Args["id"].(string)
				if !store.delete(id) {
					return nil, shared.NewError(shared.ErrorNotFound, "contact not found: %s", id)
				}
				return map[string]interface{}{"deleted": id}, nil
			},
		},
		{
			Name:        "contacts_bulk_delete",
			Description: "Deletes many contacts in one call, reporting per-id outcomes",
			Kind:        gateway.KindDelete,
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"ids": {"type": "array", "items": {"type": "string"}, "minItems": 1}
				},
				"required": ["ids"]
			}`),
			Preview: func(_ context.Context, tc *gateway.ToolContext) (*gateway.Scope, error) {
				ids := stringIDs(tc.Args)
				return &gateway.Scope{
					AffectedCount: len(ids),
					Description:   fmt.Sprintf("delete %d contacts", len(ids)),
				}, nil
			},
			Handler: func(ctx context.Context, tc *gateway.ToolContext) (map[string]interface{}, error) {
				ids := stringIDs(tc.Args)
				result, err := tc.Batch.Run(ctx, ids, func(_ context.Context, id string) error {
					if !store.delete(id) {
						return shared.NewError(shared.ErrorNotFound, "contact not found: %s", id)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"requested": result.Requested,
					"succeeded": result.Succeeded,
					"failed":    result.Failed,
					"errors":    result.Errors,
				}, nil
			},
		},
	}

	for _, desc := range descriptors {
		if err := g.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

func stringIDs(args shared.Arguments) []string {
	raw, _ := args["ids"].([]interface{})
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids
}
