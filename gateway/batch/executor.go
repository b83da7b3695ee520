package batch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/shared"
)

// Action applies the batch operation to a single identifier.
type Action func(ctx context.Context, id string) error

// ItemError reports one failed identifier. Error carries the machine code;
// Message the human detail.
type ItemError struct {
	ID      string `json:"id"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Result is the aggregate summary of a batch run. Requested counts every
// occurrence in the input, duplicates included.
type Result struct {
	Requested int         `json:"requested"`
	Succeeded int         `json:"success"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Executor runs an action over many item identifiers with bounded
// concurrency, continuing past per-item failures.
type Executor struct {
	maxBatchSize int
	workers      int
	logger       *zap.Logger
}

func New(maxBatchSize, workers int, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 50
	}
	if workers <= 0 {
		workers = 4
	}
	return &Executor{
		maxBatchSize: maxBatchSize,
		workers:      workers,
		logger:       logger,
	}
}

// Run executes action for every identifier in ids. A single item failure
// never aborts the batch. Duplicate identifiers are processed once, with
// the outcome replicated for each occurrence in the result. Ordering of
// side effects across identifiers is unspecified.
//
// Cancellation is cooperative: the context is checked before each item is
// dispatched; items already running complete, and the undispatched
// remainder is reported as failed with the cancellation reason.
func (e *Executor) Run(ctx context.Context, ids []string, action Action) (*Result, error) {
	if len(ids) > e.maxBatchSize {
		return nil, shared.NewError(shared.ErrorBatchTooLarge,
			"batch of %d identifiers exceeds the maximum of %d", len(ids), e.maxBatchSize).
			WithSuggestion(fmt.Sprintf("split the request into chunks of at most %d identifiers", e.maxBatchSize))
	}

	unique := dedupe(ids)

	outcomes := make(map[string]error, len(unique))
	var mu sync.Mutex

	jobs := make(chan string)
	var wg sync.WaitGroup
	workers := e.workers
	if workers > len(unique) && len(unique) > 0 {
		workers = len(unique)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				err := runItem(ctx, action, id)
				mu.Lock()
				outcomes[id] = err
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, id := range unique {
		select {
		case <-ctx.Done():
			e.logger.Warn("Batch canceled, halting dispatch", zap.Error(ctx.Err()))
			break dispatch
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	// Anything never dispatched failed with the cancellation reason.
	if ctx.Err() != nil {
		for _, id := range unique {
			if _, done := outcomes[id]; !done {
				outcomes[id] = fmt.Errorf("batch canceled before item was dispatched: %w", ctx.Err())
			}
		}
	}

	result := &Result{Requested: len(ids)}
	for _, id := range ids {
		err := outcomes[id]
		if err == nil {
			result.Succeeded++
			continue
		}
		result.Failed++
		ge := shared.AsGatewayError(err)
		result.Errors = append(result.Errors, ItemError{
			ID:      id,
			Error:   string(ge.Code),
			Message: ge.Message,
		})
	}

	e.logger.Debug("Batch finished",
		zap.Int("requested", result.Requested),
		zap.Int("success", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

// runItem shields the batch from a panicking action.
func runItem(ctx context.Context, action Action, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked on %q: %v", id, r)
		}
	}()
	return action(ctx, id)
}

// dedupe preserves first-occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
