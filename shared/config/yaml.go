package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var _ IConfig = (*YamlConfig)(nil)

// YamlConfig implements the configuration interface with YAML file-based storage
type YamlConfig struct {
	mu                   sync.RWMutex
	configPath           string
	logger               *zap.Logger
	watcher              *fsnotify.Watcher
	watcherDone          chan struct{}
	serverName           string
	serverVersion        string
	logLevel             string
	readOnly             bool
	defaultPageSize      int
	maxPageSize          int
	maxBatchSize         int
	batchWorkers         int
	autoSafeThreshold    int
	maxRequestSize       int64
	retryMaxAttempts     int
	retryInitialInterval time.Duration
	retryMaxInterval     time.Duration
	confirmTokenTTL      time.Duration
	compactTextLimit     int
	throttlingRPS        int
	throttlingRPM        int
}

// YAML configuration structure matching the required format
type yamlConfig struct {
	Server struct {
		Name     string `yaml:"name"`
		Version  string `yaml:"version"`
		LogLevel string `yaml:"log_level"`
		ReadOnly bool   `yaml:"read_only"`
	} `yaml:"server"`

	Limits struct {
		DefaultPageSize   int   `yaml:"default_page_size"`
		MaxPageSize       int   `yaml:"max_page_size"`
		MaxBatchSize      int   `yaml:"max_batch_size"`
		BatchWorkers      int   `yaml:"batch_workers"`
		AutoSafeThreshold int   `yaml:"auto_safe_threshold"`
		MaxRequestSize    int64 `yaml:"max_request_size"`
		CompactTextLimit  int   `yaml:"compact_text_limit"`
	} `yaml:"limits"`

	Retry struct {
		MaxAttempts     int    `yaml:"max_attempts"`
		InitialInterval string `yaml:"initial_interval"` // Go duration string, e.g. "500ms"
		MaxInterval     string `yaml:"max_interval"`
	} `yaml:"retry"`

	Confirmation struct {
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"confirmation"`

	Throttling struct {
		RPS int `yaml:"rps"`
		RPM int `yaml:"rpm"`
	} `yaml:"throttling"`
}

// NewYamlConfig creates a new YAML-based configuration
func NewYamlConfig(configPath string, logger *zap.Logger) (*YamlConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	config := &YamlConfig{
		configPath: configPath,
		logger:     logger,
	}

	if err := config.Update(); err != nil {
		return nil, err
	}
	return config, nil
}

// Update reloads configuration from the YAML file
func (c *YamlConfig) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("Updating configuration from YAML file", zap.String("path", c.configPath))

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.logger.Error("Failed to read config file", zap.Error(err))
		return err
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		c.logger.Error("Failed to parse YAML", zap.Error(err))
		return err
	}

	// --- Process Server Section ---
	c.serverName = yamlCfg.Server.Name
	c.serverVersion = yamlCfg.Server.Version
	c.logLevel = yamlCfg.Server.LogLevel
	c.readOnly = yamlCfg.Server.ReadOnly

	// --- Process Limits Section ---
	c.defaultPageSize = intOrDefault(yamlCfg.Limits.DefaultPageSize, DefaultPageSizeValue)
	c.maxPageSize = intOrDefault(yamlCfg.Limits.MaxPageSize, DefaultMaxPageSize)
	c.maxBatchSize = intOrDefault(yamlCfg.Limits.MaxBatchSize, DefaultMaxBatchSize)
	c.batchWorkers = intOrDefault(yamlCfg.Limits.BatchWorkers, DefaultBatchWorkers)
	c.autoSafeThreshold = intOrDefault(yamlCfg.Limits.AutoSafeThreshold, DefaultAutoSafeThreshold)
	c.compactTextLimit = intOrDefault(yamlCfg.Limits.CompactTextLimit, DefaultCompactTextLimit)
	c.maxRequestSize = yamlCfg.Limits.MaxRequestSize
	if c.maxRequestSize <= 0 {
		c.maxRequestSize = DefaultMaxRequestSize
	}

	// --- Process Retry Section ---
	c.retryMaxAttempts = intOrDefault(yamlCfg.Retry.MaxAttempts, DefaultRetryMaxAttempts)
	c.retryInitialInterval, err = durationOrDefault(yamlCfg.Retry.InitialInterval, DefaultRetryInitialDelay)
	if err != nil {
		return fmt.Errorf("invalid retry.initial_interval: %w", err)
	}
	c.retryMaxInterval, err = durationOrDefault(yamlCfg.Retry.MaxInterval, DefaultRetryMaxDelay)
	if err != nil {
		return fmt.Errorf("invalid retry.max_interval: %w", err)
	}

	// --- Process Confirmation Section ---
	c.confirmTokenTTL, err = durationOrDefault(yamlCfg.Confirmation.TokenTTL, DefaultConfirmTokenTTL)
	if err != nil {
		return fmt.Errorf("invalid confirmation.token_ttl: %w", err)
	}

	// --- Process Throttling Section ---
	c.throttlingRPS = intOrDefault(yamlCfg.Throttling.RPS, DefaultThrottlingRPS)
	c.throttlingRPM = intOrDefault(yamlCfg.Throttling.RPM, DefaultThrottlingRPM)

	return nil
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOrDefault(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// StartWatching begins watching the config file for changes and reloads it
// when the file is written or replaced. Stops when Close is called.
func (c *YamlConfig) StartWatching() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		return nil // already watching
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors and config maps replace the file, which
	// drops the watch on the file itself.
	if err := watcher.Add(filepath.Dir(c.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	c.watcher = watcher
	c.watcherDone = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.configPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c.logger.Info("Config file changed, reloading", zap.String("path", c.configPath))
				if err := c.Update(); err != nil {
					c.logger.Error("Config reload failed, keeping previous values", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Error("Config watcher error", zap.Error(err))
			case <-c.watcherDone:
				return
			}
		}
	}()

	c.logger.Debug("Watching config file", zap.String("path", c.configPath))
	return nil
}

// --- IConfig Implementation (Rest of methods) ---

func (c *YamlConfig) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		close(c.watcherDone)
		err := c.watcher.Close()
		c.watcher = nil
		return err
	}
	return nil
}

func (c *YamlConfig) ServerName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName, nil
}

func (c *YamlConfig) ServerVersion() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverVersion, nil
}

func (c *YamlConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logLevel, nil
}

func (c *YamlConfig) ReadOnly() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readOnly, nil
}

func (c *YamlConfig) DefaultPageSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultPageSize, nil
}

func (c *YamlConfig) MaxPageSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxPageSize, nil
}

func (c *YamlConfig) MaxBatchSize() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxBatchSize, nil
}

func (c *YamlConfig) BatchWorkers() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batchWorkers, nil
}

func (c *YamlConfig) AutoSafeThreshold() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.autoSafeThreshold, nil
}

func (c *YamlConfig) MaxRequestSize() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxRequestSize, nil
}

func (c *YamlConfig) RetryMaxAttempts() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryMaxAttempts, nil
}

func (c *YamlConfig) RetryInitialInterval() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryInitialInterval, nil
}

func (c *YamlConfig) RetryMaxInterval() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryMaxInterval, nil
}

func (c *YamlConfig) ConfirmTokenTTL() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.confirmTokenTTL, nil
}

func (c *YamlConfig) CompactTextLimit() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compactTextLimit, nil
}

func (c *YamlConfig) ThrottlingRPS() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.throttlingRPS, nil
}

func (c *YamlConfig) ThrottlingRPM() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.throttlingRPM, nil
}

func (c *YamlConfig) Status(ctx context.Context) error {
	_, err := os.Stat(c.configPath)
	return err
}
