package batch_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gate4ai/toolgate/gateway/batch"
	"github.com/gate4ai/toolgate/shared"
)

// existsAction fails with NOT_FOUND for ids in the missing set.
func existsAction(missing map[string]bool) batch.Action {
	return func(_ context.Context, id string) error {
		if missing[id] {
			return shared.NewError(shared.ErrorNotFound, "item %s does not exist", id)
		}
		return nil
	}
}

func TestRunMixedOutcomes(t *testing.T) {
	// Batch delete of 5 ids where ids 2 and 4 do not exist.
	e := batch.New(50, 4, nil)
	ids := []string{"id1", "id2", "id3", "id4", "id5"}
	result, err := e.Run(context.Background(), ids, existsAction(map[string]bool{"id2": true, "id4": true}))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Requested)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "id2", result.Errors[0].ID)
	assert.Equal(t, "NOT_FOUND", result.Errors[0].Error)
	assert.Equal(t, "id4", result.Errors[1].ID)
	assert.Equal(t, "NOT_FOUND", result.Errors[1].Error)
}

func TestRunCountsAlwaysBalance(t *testing.T) {
	e := batch.New(100, 8, nil)
	for _, missingCount := range []int{0, 3, 10} {
		missing := map[string]bool{}
		var ids []string
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("x-%d", i)
			ids = append(ids, id)
			if i < missingCount {
				missing[id] = true
			}
		}
		result, err := e.Run(context.Background(), ids, existsAction(missing))
		require.NoError(t, err)
		assert.Equal(t, result.Requested, result.Succeeded+result.Failed)
		assert.Equal(t, result.Failed > 0, len(result.Errors) > 0,
			"errors list must be non-empty exactly when failures exist")
	}
}

func TestRunBatchTooLarge(t *testing.T) {
	e := batch.New(3, 2, nil)
	called := atomic.Int32{}
	_, err := e.Run(context.Background(), []string{"a", "b", "c", "d"}, func(context.Context, string) error {
		called.Add(1)
		return nil
	})
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.ErrorBatchTooLarge))
	assert.Zero(t, called.Load(), "oversized batch must fail fast without running the action")
}

func TestRunDeduplicates(t *testing.T) {
	e := batch.New(50, 4, nil)
	var mu sync.Mutex
	calls := map[string]int{}
	ids := []string{"a", "b", "a", "a", "missing"}

	result, err := e.Run(context.Background(), ids, func(_ context.Context, id string) error {
		mu.Lock()
		calls[id]++
		mu.Unlock()
		if id == "missing" {
			return shared.NewError(shared.ErrorNotFound, "nope")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls["a"], "duplicate id must be processed once")
	assert.Equal(t, 5, result.Requested, "reporting counts every occurrence")
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestRunBoundedConcurrency(t *testing.T) {
	const workers = 3
	e := batch.New(50, workers, nil)

	var current, peak atomic.Int32
	var ids []string
	for i := 0; i < 20; i++ {
		ids = append(ids, fmt.Sprintf("i-%d", i))
	}
	result, err := e.Run(context.Background(), ids, func(context.Context, string) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20, result.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestRunCancellationStopsDispatch(t *testing.T) {
	e := batch.New(100, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, fmt.Sprintf("i-%d", i))
	}
	started := atomic.Int32{}
	result, err := e.Run(ctx, ids, func(_ context.Context, id string) error {
		if started.Add(1) == 3 {
			cancel() // cancel mid-batch from inside an item
		}
		time.Sleep(time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.Less(t, int(started.Load()), 50, "dispatch must halt after cancellation")
	assert.Equal(t, 50, result.Requested)
	assert.Equal(t, result.Requested, result.Succeeded+result.Failed)
	assert.NotEmpty(t, result.Errors)
}

func TestRunPanickingAction(t *testing.T) {
	e := batch.New(50, 2, nil)
	result, err := e.Run(context.Background(), []string{"ok", "boom"}, func(_ context.Context, id string) error {
		if id == "boom" {
			panic("kaboom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "boom", result.Errors[0].ID)
	assert.Equal(t, "UNKNOWN_ERROR", result.Errors[0].Error)
}
