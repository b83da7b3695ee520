package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var _ IConfig = (*DatabaseConfig)(nil)

// DatabaseConfig implements the configuration interface with PostgreSQL database-based storage
type DatabaseConfig struct {
	logger             *zap.Logger
	dbConnectionString string
}

// NewDatabaseConfig creates a new DatabaseConfig instance
func NewDatabaseConfig(dbConnectionString string, logger *zap.Logger) (*DatabaseConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &DatabaseConfig{
		dbConnectionString: dbConnectionString,
		logger:             logger,
	}, nil
}

// Close closes any resources held by the config
func (c *DatabaseConfig) Close() error {
	return nil
}

// --- IConfig Implementation ---

func (c *DatabaseConfig) ServerName() (string, error) {
	return c.getSettingString("gateway_server_name", "Toolgate")
}

func (c *DatabaseConfig) ServerVersion() (string, error) {
	return c.getSettingString("gateway_server_version", "1.0.0")
}

func (c *DatabaseConfig) LogLevel() (string, error) {
	return c.getSettingString("gateway_log_level", "info")
}

func (c *DatabaseConfig) ReadOnly() (bool, error) {
	return c.getSettingBool("gateway_read_only", false)
}

func (c *DatabaseConfig) DefaultPageSize() (int, error) {
	return c.getSettingInt("gateway_default_page_size", DefaultPageSizeValue)
}

func (c *DatabaseConfig) MaxPageSize() (int, error) {
	return c.getSettingInt("gateway_max_page_size", DefaultMaxPageSize)
}

func (c *DatabaseConfig) MaxBatchSize() (int, error) {
	return c.getSettingInt("gateway_max_batch_size", DefaultMaxBatchSize)
}

func (c *DatabaseConfig) BatchWorkers() (int, error) {
	return c.getSettingInt("gateway_batch_workers", DefaultBatchWorkers)
}

func (c *DatabaseConfig) AutoSafeThreshold() (int, error) {
	return c.getSettingInt("gateway_auto_safe_threshold", DefaultAutoSafeThreshold)
}

func (c *DatabaseConfig) MaxRequestSize() (int64, error) {
	v, err := c.getSettingInt("gateway_max_request_size", int(DefaultMaxRequestSize))
	return int64(v), err
}

func (c *DatabaseConfig) RetryMaxAttempts() (int, error) {
	return c.getSettingInt("gateway_retry_max_attempts", DefaultRetryMaxAttempts)
}

func (c *DatabaseConfig) RetryInitialInterval() (time.Duration, error) {
	return c.getSettingDuration("gateway_retry_initial_interval", DefaultRetryInitialDelay)
}

func (c *DatabaseConfig) RetryMaxInterval() (time.Duration, error) {
	return c.getSettingDuration("gateway_retry_max_interval", DefaultRetryMaxDelay)
}

func (c *DatabaseConfig) ConfirmTokenTTL() (time.Duration, error) {
	return c.getSettingDuration("gateway_confirm_token_ttl", DefaultConfirmTokenTTL)
}

func (c *DatabaseConfig) CompactTextLimit() (int, error) {
	return c.getSettingInt("gateway_compact_text_limit", DefaultCompactTextLimit)
}

func (c *DatabaseConfig) ThrottlingRPS() (int, error) {
	return c.getSettingInt("gateway_throttling_rps", DefaultThrottlingRPS)
}

func (c *DatabaseConfig) ThrottlingRPM() (int, error) {
	return c.getSettingInt("gateway_throttling_rpm", DefaultThrottlingRPM)
}

func (c *DatabaseConfig) Status(ctx context.Context) error {
	db, err := sql.Open("postgres", c.dbConnectionString)
	if err != nil {
		c.logger.Error("DB connect failed", zap.Error(err))
		return err
	}
	defer db.Close()
	if err = db.PingContext(ctx); err != nil {
		c.logger.Error("DB ping failed", zap.Error(err))
		return err
	}
	return nil
}

// --- Database Helper Functions ---

func (c *DatabaseConfig) getSettingRaw(key string) ([]byte, error) {
	db, err := sql.Open("postgres", c.dbConnectionString)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()
	var valueStr sql.NullString
	err = db.QueryRowContext(context.Background(), `SELECT value FROM "Settings" WHERE key = $1 LIMIT 1`, key).Scan(&valueStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query setting '%s': %w", key, err)
	}
	if !valueStr.Valid {
		return nil, ErrNotFound
	}
	return []byte(valueStr.String), nil
}

func (c *DatabaseConfig) getSettingJSON(key string) (interface{}, error) {
	raw, err := c.getSettingRaw(key)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("unmarshal setting '%s': %w", key, err)
	}
	return value, nil
}

func (c *DatabaseConfig) getSettingString(key, defaultValue string) (string, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	s, ok := value.(string)
	if !ok {
		return defaultValue, fmt.Errorf("setting '%s' is not a string: %T", key, value)
	}
	return s, nil
}

func (c *DatabaseConfig) getSettingInt(key string, defaultValue int) (int, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	f, ok := value.(float64)
	if !ok {
		return defaultValue, fmt.Errorf("setting '%s' is not a number: %T", key, value)
	}
	return int(f), nil
}

func (c *DatabaseConfig) getSettingBool(key string, defaultValue bool) (bool, error) {
	value, err := c.getSettingJSON(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return defaultValue, nil
		}
		return defaultValue, err
	}
	b, ok := value.(bool)
	if !ok {
		return defaultValue, fmt.Errorf("setting '%s' is not a boolean: %T", key, value)
	}
	return b, nil
}

func (c *DatabaseConfig) getSettingDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s, err := c.getSettingString(key, "")
	if err != nil {
		return defaultValue, err
	}
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue, fmt.Errorf("setting '%s' is not a duration: %w", key, err)
	}
	return d, nil
}
