package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/shared"
	"github.com/gate4ai/toolgate/shared/config"
)

func newTestGateway(t *testing.T, cfg *config.InternalConfig, opts ...Option) *Gateway {
	t.Helper()
	if cfg == nil {
		cfg = config.NewInternalConfig()
	}
	g, err := New(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return g
}

func callReq(operation string, args shared.Arguments) *shared.CallRequest {
	return &shared.CallRequest{
		ID:        "inv-" + operation,
		CallerID:  "test-caller",
		Operation: operation,
		Arguments: args,
	}
}

// deleteOp registers a destructive operation whose preview reports one
// affected item per id argument and whose handler flips mutated.
func deleteOp(name string, mutated *atomic.Int32) *OperationDescriptor {
	return &OperationDescriptor{
		Name:        name,
		Description: "deletes items by id",
		Kind:        KindDelete,
		Preview: func(_ context.Context, tc *ToolContext) (*Scope, error) {
			ids, _ := tc.Args["ids"].([]interface{})
			return &Scope{
				AffectedCount: len(ids),
				Description:   fmt.Sprintf("%d items", len(ids)),
			}, nil
		},
		Handler: func(_ context.Context, tc *ToolContext) (map[string]interface{}, error) {
			mutated.Add(1)
			ids, _ := tc.Args["ids"].([]interface{})
			return map[string]interface{}{"deleted": len(ids)}, nil
		},
	}
}

func idList(n int) []interface{} {
	ids := make([]interface{}, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	return ids
}

func TestExecuteOperationNotFound(t *testing.T) {
	g := newTestGateway(t, nil)

	result := g.Execute(context.Background(), callReq("no_such_op", nil))

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, shared.ErrorNotFound, result.Error.Code)
	assert.NotEmpty(t, result.Error.Suggestion)
	assert.NotEmpty(t, result.InvocationID)
}

func TestExecuteReadOnlyMode(t *testing.T) {
	cfg := config.NewInternalConfig()
	cfg.SetReadOnly(true)
	g := newTestGateway(t, cfg)

	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))
	require.NoError(t, g.Register(&OperationDescriptor{
		Name: "items_get",
		Kind: KindRead,
		Handler: func(_ context.Context, _ *ToolContext) (map[string]interface{}, error) {
			return map[string]interface{}{"id": "id-1"}, nil
		},
	}))

	result := g.Execute(context.Background(), callReq("items_delete", shared.Arguments{"ids": idList(1)}))
	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, shared.ErrorReadOnlyMode, result.Error.Code)
	assert.Equal(t, int32(0), mutated.Load())

	result = g.Execute(context.Background(), callReq("items_get", nil))
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestExecuteSchemaValidation(t *testing.T) {
	g := newTestGateway(t, nil)
	require.NoError(t, g.Register(&OperationDescriptor{
		Name:       "items_create",
		Kind:       KindWrite,
		Idempotent: true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"name": {"type": "string", "minLength": 1}},
			"required": ["name"]
		}`),
		Handler: func(_ context.Context, tc *ToolContext) (map[string]interface{}, error) {
			return map[string]interface{}{"name": tc.Args["name"]}, nil
		},
	}))

	result := g.Execute(context.Background(), callReq("items_create", shared.Arguments{}))
	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, shared.ErrorValidation, result.Error.Code)

	result = g.Execute(context.Background(), callReq("items_create", shared.Arguments{"name": "alpha"}))
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "alpha", result.Result["name"])
}

func TestExecuteDryRunIssuesConfirmToken(t *testing.T) {
	g := newTestGateway(t, nil)
	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))

	// 5 ids, above the default auto-safe threshold of 3.
	result := g.Execute(context.Background(), callReq("items_delete", shared.Arguments{
		"ids":    idList(5),
		"dryRun": true,
	}))

	assert.Equal(t, StatusCompleted, result.Status)
	assert.True(t, result.DryRun)
	require.NotNil(t, result.Scope)
	assert.Equal(t, 5, result.Scope.AffectedCount)
	assert.NotEmpty(t, result.ConfirmToken)
	assert.NotEmpty(t, result.ConfirmExpiresAt)
	assert.Equal(t, int32(0), mutated.Load(), "dry run must not mutate")
}

func TestExecuteDryRunSmallScopeNoToken(t *testing.T) {
	g := newTestGateway(t, nil)
	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))

	result := g.Execute(context.Background(), callReq("items_delete", shared.Arguments{
		"ids":    idList(2),
		"dryRun": true,
	}))

	assert.Equal(t, StatusCompleted, result.Status)
	assert.True(t, result.DryRun)
	assert.Empty(t, result.ConfirmToken)
	assert.Equal(t, int32(0), mutated.Load())
}

func TestExecuteConfirmationRequired(t *testing.T) {
	g := newTestGateway(t, nil)
	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))

	result := g.Execute(context.Background(), callReq("items_delete", shared.Arguments{"ids": idList(5)}))

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, shared.ErrorConfirmationNeeded, result.Error.Code)
	assert.Contains(t, result.Error.Suggestion, "dryRun")
	assert.Equal(t, int32(0), mutated.Load())
}

func TestExecuteConfirmTokenRoundTrip(t *testing.T) {
	g := newTestGateway(t, nil)
	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))
	args := shared.Arguments{"ids": idList(5)}

	dry := g.Execute(context.Background(), callReq("items_delete", shared.Arguments{
		"ids":    idList(5),
		"dryRun": true,
	}))
	require.Equal(t, StatusCompleted, dry.Status)
	require.NotEmpty(t, dry.ConfirmToken)

	commitArgs := shared.Arguments{"ids": args["ids"], "confirmToken": dry.ConfirmToken}
	commit := g.Execute(context.Background(), callReq("items_delete", commitArgs))
	assert.Equal(t, StatusCompleted, commit.Status)
	assert.False(t, commit.DryRun)
	assert.Equal(t, 5, commit.Result["deleted"])
	assert.Equal(t, int32(1), mutated.Load())

	// Tokens are single use.
	replay := g.Execute(context.Background(), callReq("items_delete", commitArgs))
	assert.Equal(t, StatusFailed, replay.Status)
	require.NotNil(t, replay.Error)
	assert.Equal(t, shared.ErrorInvalidConfirmToken, replay.Error.Code)
	assert.Equal(t, int32(1), mutated.Load())
}

func TestExecuteConfirmTokenScopeDrift(t *testing.T) {
	g := newTestGateway(t, nil)
	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))

	dry := g.Execute(context.Background(), callReq("items_delete", shared.Arguments{
		"ids":    idList(5),
		"dryRun": true,
	}))
	require.NotEmpty(t, dry.ConfirmToken)

	// Commit with a different id set than the one previewed.
	result := g.Execute(context.Background(), callReq("items_delete", shared.Arguments{
		"ids":          idList(7),
		"confirmToken": dry.ConfirmToken,
	}))

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, shared.ErrorInvalidConfirmToken, result.Error.Code)
	assert.Equal(t, int32(0), mutated.Load())
}

type rejectAllValidator struct{}

func (rejectAllValidator) Validate(_ *shared.CallRequest) error {
	return shared.NewRateLimitError(2_000_000_000)
}

func TestExecuteValidatorRejection(t *testing.T) {
	g := newTestGateway(t, nil, WithValidators(rejectAllValidator{}))
	require.NoError(t, g.Register(&OperationDescriptor{
		Name: "items_get",
		Kind: KindRead,
		Handler: func(_ context.Context, _ *ToolContext) (map[string]interface{}, error) {
			return nil, nil
		},
	}))

	result := g.Execute(context.Background(), callReq("items_get", nil))

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, shared.ErrorRateLimit, result.Error.Code)
	assert.Greater(t, result.Error.RetryAfter.Seconds(), 0.0)
}

func TestExecuteHandlerPanic(t *testing.T) {
	g := newTestGateway(t, nil)
	require.NoError(t, g.Register(&OperationDescriptor{
		Name: "items_get",
		Kind: KindRead,
		Handler: func(_ context.Context, _ *ToolContext) (map[string]interface{}, error) {
			panic("boom")
		},
	}))

	result := g.Execute(context.Background(), callReq("items_get", nil))

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, shared.ErrorUnknown, result.Error.Code)
}

func TestExecuteTransientErrorFinalized(t *testing.T) {
	g := newTestGateway(t, nil)
	require.NoError(t, g.Register(&OperationDescriptor{
		Name: "items_get",
		Kind: KindRead,
		Handler: func(_ context.Context, _ *ToolContext) (map[string]interface{}, error) {
			return nil, shared.NewTransientError(fmt.Errorf("connection refused"))
		},
	}))

	result := g.Execute(context.Background(), callReq("items_get", nil))

	assert.Equal(t, StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	// The internal transient marker never reaches the caller.
	assert.Equal(t, shared.ErrorUpstreamUnavailable, result.Error.Code)
	assert.True(t, result.Error.Recoverable)
}

func TestExecuteAuditRecords(t *testing.T) {
	sink := NewMemoryAuditSink()
	g := newTestGateway(t, nil, WithAuditSink(sink))
	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))

	g.Execute(context.Background(), callReq("items_delete", shared.Arguments{"ids": idList(1)}))
	g.Execute(context.Background(), callReq("missing_op", nil))

	records := sink.Records()
	require.Len(t, records, 2)
	assert.Equal(t, StatusCompleted, records[0].Status)
	assert.Equal(t, "items_delete", records[0].Operation)
	assert.Equal(t, KindDelete, records[0].Kind)
	assert.Equal(t, StatusFailed, records[1].Status)
	assert.Equal(t, shared.ErrorNotFound, records[1].ErrorCode)
}

func TestListOperations(t *testing.T) {
	g := newTestGateway(t, nil)
	var mutated atomic.Int32
	require.NoError(t, g.Register(deleteOp("items_delete", &mutated)))
	for _, name := range []string{"items_get", "items_list", "owners_get"} {
		require.NoError(t, g.Register(&OperationDescriptor{
			Name: name,
			Kind: KindRead,
			Handler: func(_ context.Context, _ *ToolContext) (map[string]interface{}, error) {
				return nil, nil
			},
		}))
	}

	page, err := g.ListOperations(context.Background(), shared.ListParams{PageSize: 2}, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextPageToken)

	rest, err := g.ListOperations(context.Background(), shared.ListParams{
		PageSize:  10,
		PageToken: page.NextPageToken,
	}, "")
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)
	assert.Empty(t, rest.NextPageToken)
	assert.True(t, rest.MayBeStale)

	// Filter by kind only sees matching descriptors.
	deletes, err := g.ListOperations(context.Background(), shared.ListParams{}, string(KindDelete))
	require.NoError(t, err)
	require.Len(t, deletes.Items, 1)
	assert.Equal(t, "items_delete", deletes.Items[0]["id"])
}

func TestRegisterDuplicate(t *testing.T) {
	g := newTestGateway(t, nil)
	desc := &OperationDescriptor{
		Name: "items_get",
		Kind: KindRead,
		Handler: func(_ context.Context, _ *ToolContext) (map[string]interface{}, error) {
			return nil, nil
		},
	}
	require.NoError(t, g.Register(desc))
	err := g.Register(desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
