package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/gateway/batch"
	"github.com/gate4ai/toolgate/gateway/confirm"
	"github.com/gate4ai/toolgate/gateway/paginator"
	"github.com/gate4ai/toolgate/gateway/retry"
	"github.com/gate4ai/toolgate/gateway/shaper"
	"github.com/gate4ai/toolgate/gateway/validators"
	"github.com/gate4ai/toolgate/shared"
	"github.com/gate4ai/toolgate/shared/config"
)

// Gateway dispatches named operations and enforces the guardrails around
// them: schema validation, read-only mode, rate limits, batch ceilings,
// dry-run previews, and confirmation of destructive scopes.
type Gateway struct {
	logger *zap.Logger
	config config.IConfig

	mu      sync.RWMutex
	ops     map[string]*OperationDescriptor
	schemas map[string]*jsonschema.Schema

	validators []shared.RequestValidator
	gate       *confirm.Gate
	pager      *paginator.Paginator
	shape      *shaper.Shaper
	executor   *batch.Executor
	policy     *retry.Policy
	audit      AuditSink
}

// Option customizes gateway construction.
type Option func(*Gateway) error

// WithTokenStore replaces the default in-memory confirmation token store.
func WithTokenStore(store confirm.TokenStore) Option {
	return func(g *Gateway) error {
		ttl, err := g.config.ConfirmTokenTTL()
		if err != nil {
			ttl = config.DefaultConfirmTokenTTL
		}
		g.gate = confirm.NewGate(store, ttl, g.logger)
		return nil
	}
}

// WithAuditSink attaches an audit collaborator.
func WithAuditSink(sink AuditSink) Option {
	return func(g *Gateway) error {
		g.audit = sink
		return nil
	}
}

// WithValidators appends request validators to the default chain.
func WithValidators(vs ...shared.RequestValidator) Option {
	return func(g *Gateway) error {
		g.validators = append(g.validators, vs...)
		return nil
	}
}

// WithTransientPredicate replaces the retry policy's transient-error
// predicate for upstream calls.
func WithTransientPredicate(p retry.Predicate) Option {
	return func(g *Gateway) error {
		attempts, initial, max := g.retrySettings()
		g.policy = retry.New(attempts, initial, max, p, g.logger)
		return nil
	}
}

// New creates a gateway wired from cfg. Operations are registered with
// Register before the first Execute; the registry is immutable afterwards
// by convention.
func New(cfg config.IConfig, logger *zap.Logger, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	g := &Gateway{
		logger:  logger,
		config:  cfg,
		ops:     make(map[string]*OperationDescriptor),
		schemas: make(map[string]*jsonschema.Schema),
	}

	defaultPage := g.intSetting(cfg.DefaultPageSize, config.DefaultPageSizeValue)
	maxPage := g.intSetting(cfg.MaxPageSize, config.DefaultMaxPageSize)
	maxBatch := g.intSetting(cfg.MaxBatchSize, config.DefaultMaxBatchSize)
	workers := g.intSetting(cfg.BatchWorkers, config.DefaultBatchWorkers)
	compact := g.intSetting(cfg.CompactTextLimit, config.DefaultCompactTextLimit)
	ttl, err := cfg.ConfirmTokenTTL()
	if err != nil {
		ttl = config.DefaultConfirmTokenTTL
	}

	g.pager = paginator.New(defaultPage, maxPage, logger)
	g.shape = shaper.New(compact, logger)
	g.executor = batch.New(maxBatch, workers, logger)
	attempts, initial, max := g.retrySettings()
	g.policy = retry.New(attempts, initial, max, nil, logger)
	g.gate = confirm.NewGate(confirm.NewMemoryTokenStore(), ttl, logger)
	g.validators = validators.CreateDefaultValidators(cfg)

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Register adds an operation descriptor. Registering the same name twice is
// an error: descriptors are immutable once added.
func (g *Gateway) Register(desc *OperationDescriptor) error {
	if err := desc.validate(); err != nil {
		return err
	}
	schema, err := compileSchema(desc.Name, desc.InputSchema)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.ops[desc.Name]; exists {
		return fmt.Errorf("operation with name '%s' already exists", desc.Name)
	}
	g.ops[desc.Name] = desc
	g.schemas[desc.Name] = schema
	g.logger.Info("Registered operation",
		zap.String("name", desc.Name),
		zap.String("kind", string(desc.Kind)))
	return nil
}

// Execute runs one invocation through the state machine
// Received -> Validated -> (DryRunPreview | Executing) -> Completed | Failed.
// The result is always structured; failures carry a GatewayError and are
// never returned as free text.
func (g *Gateway) Execute(ctx context.Context, req *shared.CallRequest) *CallResult {
	start := time.Now().UTC()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	logger := g.logger.With(
		zap.String("invocationID", req.ID),
		zap.String("operation", req.Operation),
		zap.String("callerID", req.CallerID),
	)

	result := &CallResult{
		InvocationID: req.ID,
		Operation:    req.Operation,
		StartedAt:    start.Format(time.RFC3339),
	}
	var desc *OperationDescriptor
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered during invocation", zap.Any("panic", r))
			g.fail(result, start, shared.NewError(shared.ErrorUnknown, "internal error: %v", r))
		}
		g.appendAudit(ctx, req, desc, result, logger)
	}()

	g.mu.RLock()
	desc = g.ops[req.Operation]
	schema := g.schemas[req.Operation]
	g.mu.RUnlock()
	if desc == nil {
		logger.Warn("Operation not found")
		return g.fail(result, start, shared.NewError(shared.ErrorNotFound, "operation not found: %s", req.Operation).
			WithSuggestion("list available operations first"))
	}

	// Read-only mode rejects mutations before any business validation.
	if readOnly, err := g.config.ReadOnly(); err == nil && readOnly && desc.Mutating() {
		logger.Warn("Rejecting mutating operation in read-only mode")
		return g.fail(result, start, shared.NewError(shared.ErrorReadOnlyMode,
			"operation '%s' mutates state and the gateway is in read-only mode", desc.Name))
	}

	for _, v := range g.validators {
		if err := v.Validate(req); err != nil {
			logger.Warn("Request rejected by validator", zap.Error(err))
			return g.fail(result, start, err)
		}
	}

	if schema != nil {
		if err := validateAgainstSchema(schema, req.Arguments); err != nil {
			logger.Debug("Arguments failed schema validation", zap.Error(err))
			return g.fail(result, start, shared.NewError(shared.ErrorValidation, "invalid arguments: %v", err).
				WithSuggestion("check the operation's input schema"))
		}
	}

	tc, err := g.newToolContext(req, desc, logger)
	if err != nil {
		return g.fail(result, start, err)
	}

	if tc.DryRun && desc.Mutating() {
		g.preview(ctx, desc, tc, result, start, logger)
	} else {
		g.execute(ctx, desc, tc, result, start, logger)
	}
	result.Meta = tc.metaSnapshot()
	result.finish(start)
	return result
}

// preview handles the DryRunPreview branch: compute the affected scope,
// mutate nothing, and hand out a confirmation token when the scope will
// need one at commit time.
func (g *Gateway) preview(ctx context.Context, desc *OperationDescriptor, tc *ToolContext, result *CallResult, start time.Time, logger *zap.Logger) {
	if desc.Preview == nil {
		g.fail(result, start, shared.NewError(shared.ErrorValidation,
			"operation '%s' does not support dry runs", desc.Name))
		return
	}
	scope, err := desc.Preview(ctx, tc)
	if err != nil {
		g.fail(result, start, shared.FinalizeUpstreamError(err))
		return
	}
	result.Status = StatusCompleted
	result.DryRun = true
	result.Scope = scope

	if desc.Destructive() && scope.AffectedCount > g.autoSafeThreshold() {
		token, expiresAt, err := g.gate.Issue(ctx, g.signature(desc, tc, scope))
		if err != nil {
			g.fail(result, start, err)
			return
		}
		result.ConfirmToken = token
		result.ConfirmExpiresAt = expiresAt.Format(time.RFC3339)
	}
	logger.Info("Dry run completed", zap.Int("affectedCount", scope.AffectedCount))
}

// execute handles the Executing branch, including the confirmation check
// for destructive scopes above the auto-safe threshold.
func (g *Gateway) execute(ctx context.Context, desc *OperationDescriptor, tc *ToolContext, result *CallResult, start time.Time, logger *zap.Logger) {
	if desc.Destructive() {
		scope, err := desc.Preview(ctx, tc)
		if err != nil {
			g.fail(result, start, shared.FinalizeUpstreamError(err))
			return
		}
		result.Scope = scope
		if scope.AffectedCount > g.autoSafeThreshold() {
			mut, err := shared.MutationParamsFrom(tc.Request.Arguments)
			if err != nil {
				g.fail(result, start, shared.NewError(shared.ErrorValidation, "invalid control parameters: %v", err))
				return
			}
			if mut.ConfirmToken == "" {
				g.fail(result, start, shared.NewError(shared.ErrorConfirmationNeeded,
					"operation '%s' affects %d items, above the auto-safe threshold of %d",
					desc.Name, scope.AffectedCount, g.autoSafeThreshold()).
					WithSuggestion("run the operation with dryRun: true first to preview the scope and obtain a confirmToken"))
				return
			}
			if err := g.gate.Validate(ctx, mut.ConfirmToken, g.signature(desc, tc, scope)); err != nil {
				g.fail(result, start, err)
				return
			}
		}
	}

	out, err := desc.Handler(ctx, tc)
	if err != nil {
		g.fail(result, start, shared.FinalizeUpstreamError(err))
		return
	}
	result.Status = StatusCompleted
	result.Result = out
	logger.Info("Invocation completed", zap.String("operation", desc.Name))
}

// ListOperations returns a paginated, shapeable listing of the registered
// descriptors, filtered by kind when filter is non-empty. The listing obeys
// the same pagination and shaping conventions as any other list operation.
func (g *Gateway) ListOperations(ctx context.Context, params shared.ListParams, filter string) (*paginator.Page, error) {
	page, err := g.pager.Page(ctx, &descriptorSource{g: g}, filter, params.PageSize, params.PageToken)
	if err != nil {
		return nil, err
	}
	page.Items = g.shape.ShapeList(page.Items, shaper.Request{
		ReturnOnlyIDs: params.ReturnOnlyIDs,
		Compact:       params.Compact,
		Fields:        params.Fields,
	})
	return page, nil
}

// descriptorSource adapts the registry to the paginator's Source.
type descriptorSource struct {
	g *Gateway
}

func (s *descriptorSource) Window(_ context.Context, filter string, offset, limit int) ([]map[string]interface{}, error) {
	s.g.mu.RLock()
	names := make([]string, 0, len(s.g.ops))
	for name, desc := range s.g.ops {
		if filter != "" && string(desc.Kind) != filter {
			continue
		}
		names = append(names, name)
	}
	s.g.mu.RUnlock()
	sort.Strings(names)

	if offset >= len(names) {
		return nil, nil
	}
	end := offset + limit
	if end > len(names) {
		end = len(names)
	}

	s.g.mu.RLock()
	defer s.g.mu.RUnlock()
	items := make([]map[string]interface{}, 0, end-offset)
	for _, name := range names[offset:end] {
		if desc, ok := s.g.ops[name]; ok {
			items = append(items, desc.Summary())
		}
	}
	return items, nil
}

// --- internals ---

func (g *Gateway) newToolContext(req *shared.CallRequest, desc *OperationDescriptor, logger *zap.Logger) (*ToolContext, error) {
	listParams, err := shared.ListParamsFrom(req.Arguments)
	if err != nil {
		return nil, shared.NewError(shared.ErrorValidation, "invalid list parameters: %v", err)
	}
	mut := shared.MutationParams{}
	if desc.Mutating() {
		mut, err = shared.MutationParamsFrom(req.Arguments)
		if err != nil {
			return nil, shared.NewError(shared.ErrorValidation, "invalid control parameters: %v", err)
		}
	}
	return &ToolContext{
		Request:   req,
		Args:      businessArgs(req.Arguments),
		List:      listParams,
		DryRun:    mut.DryRun,
		Logger:    logger,
		Batch:     g.executor,
		Retry:     g.policy,
		paginator: g.pager,
		shaper:    g.shape,
	}, nil
}

// businessArgs strips the mutation control fields; they steer the gateway,
// not the operation.
func businessArgs(args shared.Arguments) shared.Arguments {
	if args == nil {
		return shared.Arguments{}
	}
	out := make(shared.Arguments, len(args))
	for k, v := range args {
		if k == "dryRun" || k == "confirmToken" {
			continue
		}
		out[k] = v
	}
	return out
}

// signature binds an operation to its previewed scope. A scope that drifts
// between preview and commit produces a different signature, which is what
// invalidates a stale confirmation token.
func (g *Gateway) signature(desc *OperationDescriptor, tc *ToolContext, scope *Scope) confirm.ActionSignature {
	return confirm.ActionSignature{
		Operation: desc.Name,
		Scope:     fmt.Sprintf("%s affecting %d", shared.CanonicalJSON(tc.Args), scope.AffectedCount),
	}
}

func (g *Gateway) fail(result *CallResult, start time.Time, err error) *CallResult {
	result.Status = StatusFailed
	result.Error = shared.AsGatewayError(err)
	result.finish(start)
	return result
}

func (g *Gateway) appendAudit(ctx context.Context, req *shared.CallRequest, desc *OperationDescriptor, result *CallResult, logger *zap.Logger) {
	if g.audit == nil || result.Status == "" {
		return
	}
	rec := &AuditRecord{
		InvocationID: req.ID,
		CallerID:     req.CallerID,
		Operation:    req.Operation,
		Status:       result.Status,
		DryRun:       result.DryRun,
		Duration:     time.Duration(result.DurationMS) * time.Millisecond,
		Timestamp:    time.Now().UTC(),
	}
	if desc != nil {
		rec.Kind = desc.Kind
	}
	if result.Error != nil {
		rec.ErrorCode = result.Error.Code
	}
	// Best effort: audit failures are logged, never surfaced.
	if err := g.audit.Append(ctx, rec); err != nil {
		logger.Error("Failed to append audit record", zap.Error(err))
	}
}

func (g *Gateway) autoSafeThreshold() int {
	return g.intSetting(g.config.AutoSafeThreshold, config.DefaultAutoSafeThreshold)
}

func (g *Gateway) retrySettings() (int, time.Duration, time.Duration) {
	attempts := g.intSetting(g.config.RetryMaxAttempts, config.DefaultRetryMaxAttempts)
	initial, err := g.config.RetryInitialInterval()
	if err != nil {
		initial = config.DefaultRetryInitialDelay
	}
	max, err := g.config.RetryMaxInterval()
	if err != nil {
		max = config.DefaultRetryMaxDelay
	}
	return attempts, initial, max
}

func (g *Gateway) intSetting(getter func() (int, error), def int) int {
	v, err := getter()
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// validateAgainstSchema round-trips the arguments through JSON so the
// schema library sees the exact value shapes a wire payload would have.
func validateAgainstSchema(schema *jsonschema.Schema, args shared.Arguments) error {
	if args == nil {
		args = shared.Arguments{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return schema.Validate(doc)
}
