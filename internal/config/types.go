package config

import "time"

// Config holds every option spec.md §6 enumerates for the five pipeline
// stages, plus the ambient logging section the teacher's config always
// carries. Grounded on olla's internal/config/types.go: plain structs with
// yaml tags, no behaviour on the struct itself.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Rate     RateConfig     `yaml:"rate"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Pool     PoolConfig     `yaml:"pool"`
	Selector SelectorConfig `yaml:"selector"`
	Cache    CacheConfig    `yaml:"cache"`
}

// RateConfig mirrors ratelimit.Config's options (§4.1).
type RateConfig struct {
	RateLimit float64 `yaml:"rate_limit"`
	WindowMs  int64   `yaml:"window_ms"`
	MaxBurst  float64 `yaml:"max_burst"`
}

// BreakerConfig mirrors breaker.Config's options (§4.2).
type BreakerConfig struct {
	FailureThreshold         int           `yaml:"failure_threshold"`
	SuccessThreshold         int           `yaml:"success_threshold"`
	CooldownPeriod           time.Duration `yaml:"cooldown_period"`
	VolumeThreshold          int           `yaml:"volume_threshold"`
	ErrorThresholdPercentage float64       `yaml:"error_threshold_percentage"`
	OperationTimeout         time.Duration `yaml:"operation_timeout"`
}

// PoolConfig mirrors pool.Config's options (§4.3). MaxResponseBytes is a
// human-readable size string (e.g. "10MB"), parsed with
// github.com/docker/go-units the way registry profile configs in the pack
// accept human sizes, and enforced as a read cap on the wire fetcher.
type PoolConfig struct {
	MaxSockets        int    `yaml:"max_sockets"`
	MaxSocketsPerHost int    `yaml:"max_sockets_per_host"`
	KeepAlive         bool   `yaml:"keep_alive"`
	KeepAliveMs       int64  `yaml:"keep_alive_ms"`
	TimeoutMs         int64  `yaml:"timeout_ms"`
	MaxFreeSockets    int    `yaml:"max_free_sockets"`
	MaxResponseBytes  string `yaml:"max_response_bytes"`
}

// SelectorConfig mirrors selector.Config's options (§4.4) plus the
// strategy name and static endpoint list.
type SelectorConfig struct {
	Strategy            string           `yaml:"strategy"`
	Endpoints           []EndpointConfig `yaml:"endpoints"`
	FailureThreshold    int              `yaml:"failure_threshold"`
	RecoveryTime        time.Duration    `yaml:"recovery_time"`
	HealthCheckInterval time.Duration    `yaml:"health_check_interval"`
}

// EndpointConfig is one statically configured upstream JSON-RPC target.
type EndpointConfig struct {
	ID     string  `yaml:"id"`
	URL    string  `yaml:"url"`
	Weight float64 `yaml:"weight"`
}

// CacheConfig mirrors cache.Config's options (§4.5).
type CacheConfig struct {
	MaxSize          int           `yaml:"max_size"`
	DefaultTTL       time.Duration `yaml:"default_ttl"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	CoalesceRequests bool          `yaml:"coalesce_requests"`
}

// LoggingConfig holds logging configuration, grounded on olla's
// config.LoggingConfig plus the fields internal/logger.Config needs.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	LogDir     string `yaml:"log_dir"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	FileOutput bool   `yaml:"file_output"`
	PrettyLogs bool   `yaml:"pretty_logs"`
}
