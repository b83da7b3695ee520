package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/gate4ai/toolgate/shared"
)

// Predicate reports whether an error is transient and worth retrying.
type Predicate func(error) bool

// DefaultPredicate retries errors the upstream layer has explicitly marked
// transient, and nothing else.
func DefaultPredicate(err error) bool {
	return shared.IsCode(err, shared.ErrorTransientUpstream)
}

// Policy wraps a single outbound call with bounded exponential-backoff
// retry. Retry mechanics stay internal: the caller sees the final error and
// an attempt count for observability, never a retry control surface.
type Policy struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	transient       Predicate
	logger          *zap.Logger
}

// New creates a retry policy. maxAttempts counts the first call, so 1 means
// no retries. A nil predicate falls back to DefaultPredicate.
func New(maxAttempts int, initialInterval, maxInterval time.Duration, transient Predicate, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if initialInterval <= 0 {
		initialInterval = 500 * time.Millisecond
	}
	if maxInterval <= 0 {
		maxInterval = 10 * time.Second
	}
	if transient == nil {
		transient = DefaultPredicate
	}
	return &Policy{
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		transient:       transient,
		logger:          logger,
	}
}

// Do invokes op, retrying transient failures with exponential backoff until
// the attempt ceiling. It returns how many attempts ran. Non-transient
// errors propagate immediately; transient errors that outlive the budget
// surface as UPSTREAM_UNAVAILABLE.
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.initialInterval
	expBackoff.MaxInterval = p.maxInterval
	expBackoff.MaxElapsedTime = 0 // the attempt ceiling bounds us, not wall time
	expBackoff.Reset()

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if !p.transient(lastErr) {
			return attempt, lastErr
		}
		if attempt == p.maxAttempts {
			p.logger.Warn("Retry budget exhausted",
				zap.Int("attempts", attempt),
				zap.Error(lastErr))
			return attempt, p.finalize(lastErr)
		}

		wait := expBackoff.NextBackOff()
		if wait == backoff.Stop {
			return attempt, p.finalize(lastErr)
		}
		p.logger.Debug("Transient failure, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(lastErr))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return p.maxAttempts, p.finalize(lastErr)
}

// finalize converts an exhausted transient error into the caller-visible
// UPSTREAM_UNAVAILABLE; TRANSIENT_UPSTREAM must never escape this package.
func (p *Policy) finalize(err error) error {
	out := shared.FinalizeUpstreamError(err)
	if !shared.IsCode(out, shared.ErrorUpstreamUnavailable) {
		out = shared.FinalizeUpstreamError(shared.NewTransientError(err))
	}
	return out
}
