// Package config loads rpcchain's configuration, grounded on olla's
// internal/config package: viper for YAML + environment overlay,
// fsnotify-driven change notification (logged, not live-applied, per
// spec.md §6's "re-configuration is not required to be live").
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DefaultFileWriteDelay debounces the editor-save-then-fsnotify-fires-early
// race some filesystems exhibit, matching olla's config.go.
const DefaultFileWriteDelay = 150 * time.Millisecond

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults for a
// single local endpoint and conservative pipeline limits.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			PrettyLogs: true,
		},
		Rate: RateConfig{
			RateLimit: 10,
			WindowMs:  1000,
			MaxBurst:  15,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			CooldownPeriod:   30 * time.Second,
			OperationTimeout: 10 * time.Second,
		},
		Pool: PoolConfig{
			MaxSockets:        500,
			MaxSocketsPerHost: 50,
			KeepAlive:         true,
			KeepAliveMs:       90_000,
			TimeoutMs:         30_000,
			MaxFreeSockets:    10,
			MaxResponseBytes:  "10MB",
		},
		Selector: SelectorConfig{
			Strategy: "round-robin",
			Endpoints: []EndpointConfig{
				{ID: "primary", URL: "http://localhost:8899", Weight: 1},
			},
			FailureThreshold:    3,
			RecoveryTime:        30 * time.Second,
			HealthCheckInterval: 10 * time.Second,
		},
		Cache: CacheConfig{
			MaxSize:          10_000,
			DefaultTTL:       30 * time.Second,
			CleanupInterval:  time.Minute,
			CoalesceRequests: true,
		},
	}
}

// Load reads configuration from a config.yaml found on the working
// directory or ./config, overlays RPCCHAIN_-prefixed environment
// variables, and watches the file for subsequent changes. onConfigChange,
// if non-nil, is invoked (after a small debounce and write-settle delay)
// on every detected change; rpcchain does not apply a changed config
// live, so callers typically use this only to log that a restart is
// needed.
func Load(onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("RPCCHAIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("RPCCHAIN_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return
			}
			lastReload = now

			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}

	return cfg, nil
}
