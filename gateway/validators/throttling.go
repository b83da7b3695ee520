package validators

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gate4ai/toolgate/shared"
)

// Throttling limits the rate of invocations per caller using RPM (requests
// per minute) and RPS (requests per second)
type Throttling struct {
	defaultRPM int
	defaultRPS int
	mu         sync.Mutex
	limiters   map[string]*limiterPair
}

// limiterPair holds the RPS and RPM limiters for a caller
type limiterPair struct {
	rpsLimiter *rate.Limiter
	rpmLimiter *rate.Limiter
}

// NewThrottling creates a new throttling validator
func NewThrottling(defaultRPS, defaultRPM int) *Throttling {
	return &Throttling{
		defaultRPM: defaultRPM,
		defaultRPS: defaultRPS,
		limiters:   make(map[string]*limiterPair),
	}
}

// getLimiters gets or creates rate limiters for a caller. Creation and
// lookup share one mutex so each caller key has a single limiter pair.
func (t *Throttling) getLimiters(callerID string) *limiterPair {
	t.mu.Lock()
	defer t.mu.Unlock()

	pair, ok := t.limiters[callerID]
	if ok {
		return pair
	}

	pair = &limiterPair{}
	if t.defaultRPS > 0 {
		pair.rpsLimiter = rate.NewLimiter(rate.Limit(t.defaultRPS), t.defaultRPS)
	}
	if t.defaultRPM > 0 {
		// Convert RPM to requests per second for the limiter
		pair.rpmLimiter = rate.NewLimiter(rate.Limit(t.defaultRPM)/60.0, t.defaultRPM)
	}
	t.limiters[callerID] = pair
	return pair
}

// Validate implements the RequestValidator interface
func (t *Throttling) Validate(req *shared.CallRequest) error {
	pair := t.getLimiters(req.CallerID)

	if pair.rpsLimiter != nil && !pair.rpsLimiter.Allow() {
		return shared.NewRateLimitError(retryAfter(pair.rpsLimiter))
	}
	if pair.rpmLimiter != nil && !pair.rpmLimiter.Allow() {
		return shared.NewRateLimitError(retryAfter(pair.rpmLimiter))
	}
	return nil
}

// retryAfter estimates how long until the limiter admits one request,
// without consuming a token.
func retryAfter(l *rate.Limiter) time.Duration {
	r := l.Reserve()
	delay := r.Delay()
	r.Cancel()
	if delay <= 0 {
		delay = time.Second
	}
	return delay
}
