package config

import (
	"context"
	"errors"
	"sync"
	"time"
)

var _ IConfig = (*InternalConfig)(nil)
var ErrNotFound = errors.New("not found")

// InternalConfig implements the configuration interface with in-memory storage
type InternalConfig struct {
	mu                        sync.RWMutex
	ServerNameValue           string
	ServerVersionValue        string
	LogLevelValue             string
	ReadOnlyValue             bool
	DefaultPageSizeValue      int
	MaxPageSizeValue          int
	MaxBatchSizeValue         int
	BatchWorkersValue         int
	AutoSafeThresholdValue    int
	MaxRequestSizeValue       int64
	RetryMaxAttemptsValue     int
	RetryInitialIntervalValue time.Duration
	RetryMaxIntervalValue     time.Duration
	ConfirmTokenTTLValue      time.Duration
	CompactTextLimitValue     int
	ThrottlingRPSValue        int
	ThrottlingRPMValue        int
}

// NewInternalConfig creates a new in-memory configuration with defaults
func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		ServerNameValue:           "Unknown",
		ServerVersionValue:        "0.0.0",
		LogLevelValue:             "info",
		DefaultPageSizeValue:      DefaultPageSizeValue,
		MaxPageSizeValue:          DefaultMaxPageSize,
		MaxBatchSizeValue:         DefaultMaxBatchSize,
		BatchWorkersValue:         DefaultBatchWorkers,
		AutoSafeThresholdValue:    DefaultAutoSafeThreshold,
		MaxRequestSizeValue:       DefaultMaxRequestSize,
		RetryMaxAttemptsValue:     DefaultRetryMaxAttempts,
		RetryInitialIntervalValue: DefaultRetryInitialDelay,
		RetryMaxIntervalValue:     DefaultRetryMaxDelay,
		ConfirmTokenTTLValue:      DefaultConfirmTokenTTL,
		CompactTextLimitValue:     DefaultCompactTextLimit,
		ThrottlingRPSValue:        DefaultThrottlingRPS,
		ThrottlingRPMValue:        DefaultThrottlingRPM,
	}
}

func (c *InternalConfig) ServerName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerNameValue, nil
}

func (c *InternalConfig) ServerVersion() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerVersionValue, nil
}

// LogLevel returns the configured log level
func (c *InternalConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LogLevelValue, nil
}

func (c *InternalConfig) ReadOnly() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ReadOnlyValue, nil
}

// SetReadOnly toggles read-only mode at runtime.
func (c *InternalConfig) SetReadOnly(ro bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReadOnlyValue = ro
}

func (c *InternalConfig) DefaultPageSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DefaultPageSizeValue, nil
}

func (c *InternalConfig) MaxPageSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxPageSizeValue, nil
}

func (c *InternalConfig) MaxBatchSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxBatchSizeValue, nil
}

func (c *InternalConfig) SetMaxBatchSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MaxBatchSizeValue = n
}

func (c *InternalConfig) BatchWorkers() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BatchWorkersValue, nil
}

func (c *InternalConfig) AutoSafeThreshold() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AutoSafeThresholdValue, nil
}

func (c *InternalConfig) SetAutoSafeThreshold(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AutoSafeThresholdValue = n
}

func (c *InternalConfig) MaxRequestSize() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxRequestSizeValue, nil
}

func (c *InternalConfig) RetryMaxAttempts() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RetryMaxAttemptsValue, nil
}

func (c *InternalConfig) RetryInitialInterval() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RetryInitialIntervalValue, nil
}

func (c *InternalConfig) RetryMaxInterval() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RetryMaxIntervalValue, nil
}

func (c *InternalConfig) ConfirmTokenTTL() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ConfirmTokenTTLValue, nil
}

func (c *InternalConfig) SetConfirmTokenTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConfirmTokenTTLValue = ttl
}

func (c *InternalConfig) CompactTextLimit() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CompactTextLimitValue, nil
}

func (c *InternalConfig) ThrottlingRPS() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ThrottlingRPSValue, nil
}

func (c *InternalConfig) ThrottlingRPM() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ThrottlingRPMValue, nil
}

func (c *InternalConfig) Status(ctx context.Context) error {
	return nil
}

func (c *InternalConfig) Close() error {
	return nil
}
