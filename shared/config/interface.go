package config

import (
	"context"
	"time"
)

// Default guardrail values used when a backend has no explicit setting.
const (
	DefaultPageSizeValue     = 25
	DefaultMaxPageSize       = 100
	DefaultMaxBatchSize      = 50
	DefaultBatchWorkers      = 4
	DefaultRetryMaxAttempts  = 4
	DefaultRetryInitialDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay     = 10 * time.Second
	DefaultConfirmTokenTTL   = 5 * time.Minute
	DefaultAutoSafeThreshold = 3
	DefaultCompactTextLimit  = 160
	DefaultThrottlingRPS     = 10
	DefaultThrottlingRPM     = 300
	DefaultMaxRequestSize    = int64(102400) // 100KB
)

// IConfig is the configuration surface consumed by the gateway and its
// guardrail components. Implementations must be safe for concurrent use.
type IConfig interface {
	// Identity
	ServerName() (string, error)
	ServerVersion() (string, error)
	LogLevel() (string, error)

	// Guardrails
	ReadOnly() (bool, error)
	DefaultPageSize() (int, error)
	MaxPageSize() (int, error)
	MaxBatchSize() (int, error)
	BatchWorkers() (int, error)
	AutoSafeThreshold() (int, error)
	MaxRequestSize() (int64, error)

	// Retry policy
	RetryMaxAttempts() (int, error)
	RetryInitialInterval() (time.Duration, error)
	RetryMaxInterval() (time.Duration, error)

	// Confirmation tokens
	ConfirmTokenTTL() (time.Duration, error)

	// Response shaping
	CompactTextLimit() (int, error)

	// Throttling
	ThrottlingRPS() (int, error)
	ThrottlingRPM() (int, error)

	// Lifecycle & Status
	Status(ctx context.Context) error
	Close() error
}
