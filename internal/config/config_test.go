package config

import (
	"os"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Rate.RateLimit != 10 {
		t.Errorf("expected default rate limit 10, got %v", cfg.Rate.RateLimit)
	}
	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("expected default breaker failure threshold 5, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Pool.MaxSockets != 500 {
		t.Errorf("expected default max sockets 500, got %d", cfg.Pool.MaxSockets)
	}
	if cfg.Selector.Strategy != "round-robin" {
		t.Errorf("expected default strategy round-robin, got %s", cfg.Selector.Strategy)
	}
	if len(cfg.Selector.Endpoints) != 1 {
		t.Errorf("expected 1 default endpoint, got %d", len(cfg.Selector.Endpoints))
	}
	if !cfg.Cache.CoalesceRequests {
		t.Error("expected coalesceRequests to default true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadConfig_WithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed with no config file present: %v", err)
	}
	if cfg.Rate.RateLimit != 10 {
		t.Errorf("expected fallback to DefaultConfig's rate limit, got %v", cfg.Rate.RateLimit)
	}
}

func TestLoadConfig_WithEnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RPCCHAIN_SELECTOR_STRATEGY", "weighted")
	t.Setenv("RPCCHAIN_LOGGING_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load with env vars failed: %v", err)
	}
	if cfg.Selector.Strategy != "weighted" {
		t.Errorf("expected strategy overridden to weighted, got %s", cfg.Selector.Strategy)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level overridden to debug, got %s", cfg.Logging.Level)
	}
}
