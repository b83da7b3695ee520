package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/gateway/batch"
	"github.com/gate4ai/toolgate/gateway/paginator"
	"github.com/gate4ai/toolgate/gateway/retry"
	"github.com/gate4ai/toolgate/gateway/shaper"
	"github.com/gate4ai/toolgate/shared"
)

// Handler executes an operation and returns its structured result.
type Handler func(ctx context.Context, tc *ToolContext) (map[string]interface{}, error)

// PreviewFunc computes the affected scope of a mutating operation without
// committing anything.
type PreviewFunc func(ctx context.Context, tc *ToolContext) (*Scope, error)

// Scope describes what a mutating operation will touch.
type Scope struct {
	AffectedCount int    `json:"affectedCount"`
	Description   string `json:"description,omitempty"`
}

// ToolContext is what the gateway hands to an operation handler: the parsed
// request plus the guardrail components, pre-configured from gateway
// settings. Handlers compose these instead of talking to downstream
// collaborators directly.
type ToolContext struct {
	Request *shared.CallRequest
	// Args are the business arguments with the cross-cutting control fields
	// (dryRun, confirmToken) stripped.
	Args   shared.Arguments
	List   shared.ListParams
	DryRun bool
	Logger *zap.Logger

	Batch *batch.Executor
	Retry *retry.Policy

	paginator *paginator.Paginator
	shaper    *shaper.Shaper

	metaMu sync.Mutex
	meta   map[string]interface{}
}

// Paginate fetches one page of src using the request's pageSize/pageToken
// and shapes every item per the request's shaping flags.
func (tc *ToolContext) Paginate(ctx context.Context, src paginator.Source, filter string) (*paginator.Page, error) {
	page, err := tc.paginator.Page(ctx, src, filter, tc.List.PageSize, tc.List.PageToken)
	if err != nil {
		return nil, err
	}
	page.Items = tc.shaper.ShapeList(page.Items, tc.shapingRequest())
	return page, nil
}

// Shape applies the request's shaping flags to a single resource.
func (tc *ToolContext) Shape(resource map[string]interface{}) map[string]interface{} {
	return tc.shaper.Shape(resource, tc.shapingRequest())
}

func (tc *ToolContext) shapingRequest() shaper.Request {
	return shaper.Request{
		ReturnOnlyIDs: tc.List.ReturnOnlyIDs,
		Compact:       tc.List.Compact,
		Fields:        tc.List.Fields,
	}
}

// CallUpstream runs op under the retry policy and records the attempt count
// in the invocation metadata, so retries stay invisible to the caller while
// remaining observable.
func (tc *ToolContext) CallUpstream(ctx context.Context, op func(context.Context) error) error {
	attempts, err := tc.Retry.Do(ctx, op)
	tc.SetMeta("upstreamAttempts", attempts)
	return err
}

// SetMeta attaches an observability value to the invocation result.
func (tc *ToolContext) SetMeta(key string, value interface{}) {
	tc.metaMu.Lock()
	defer tc.metaMu.Unlock()
	if tc.meta == nil {
		tc.meta = make(map[string]interface{})
	}
	tc.meta[key] = value
}

func (tc *ToolContext) metaSnapshot() map[string]interface{} {
	tc.metaMu.Lock()
	defer tc.metaMu.Unlock()
	if len(tc.meta) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(tc.meta))
	for k, v := range tc.meta {
		out[k] = v
	}
	return out
}
