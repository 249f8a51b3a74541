// Package app wires configuration into a running Orchestrator and owns
// its process lifecycle, grounded on olla's app.Application: a small
// struct holding what Start/Stop need, built once in main and driven by
// a context the caller cancels on shutdown signal.
package app

import (
	"context"
	"fmt"
	"net/url"

	"rpcchain/internal/adapter/breaker"
	"rpcchain/internal/adapter/cache"
	"rpcchain/internal/adapter/pool"
	"rpcchain/internal/adapter/ratelimit"
	"rpcchain/internal/adapter/selector"
	"rpcchain/internal/adapter/wire"
	"rpcchain/internal/config"
	"rpcchain/internal/core/domain"
	"rpcchain/internal/logger"
	"rpcchain/internal/metrics"
	"rpcchain/internal/orchestrator"
)

// Application owns the orchestrator and the background consumer that
// logs its CallEvent stream.
type Application struct {
	cfg          *config.Config
	log          *logger.StyledLogger
	orchestrator *orchestrator.Orchestrator
	eventsCancel func()
}

// New builds every pipeline stage from cfg and composes them into an
// Orchestrator. Endpoint URLs are parsed once here so a malformed
// config.yaml fails fast at startup instead of at first call.
func New(cfg *config.Config, log *logger.StyledLogger) (*Application, error) {
	endpoints, err := buildEndpoints(cfg.Selector.Endpoints)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	reg := selector.NewRegistry(endpoints, selector.Config{
		FailureThreshold:    cfg.Selector.FailureThreshold,
		RecoveryTime:        cfg.Selector.RecoveryTime,
		HealthCheckInterval: cfg.Selector.HealthCheckInterval,
	})

	sel, err := selector.New(cfg.Selector.Strategy, reg)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	fetcher, err := wire.NewWithMaxResponseBytes(cfg.Pool.MaxResponseBytes)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		RateLimiter: ratelimit.New(ratelimit.Config{
			RateLimit: cfg.Rate.RateLimit,
			WindowMs:  cfg.Rate.WindowMs,
			MaxBurst:  cfg.Rate.MaxBurst,
		}),
		Breaker: breaker.New(breaker.Config{
			FailureThreshold:         cfg.Breaker.FailureThreshold,
			SuccessThreshold:         cfg.Breaker.SuccessThreshold,
			CooldownPeriod:           cfg.Breaker.CooldownPeriod,
			VolumeThreshold:          cfg.Breaker.VolumeThreshold,
			ErrorThresholdPercentage: cfg.Breaker.ErrorThresholdPercentage,
			OperationTimeout:         cfg.Breaker.OperationTimeout,
		}, domain.ClassifyError),
		Pool: pool.New(pool.Config{
			MaxSockets:        cfg.Pool.MaxSockets,
			MaxSocketsPerHost: cfg.Pool.MaxSocketsPerHost,
			KeepAlive:         cfg.Pool.KeepAlive,
			KeepAliveMs:       cfg.Pool.KeepAliveMs,
			TimeoutMs:         cfg.Pool.TimeoutMs,
			MaxFreeSockets:    cfg.Pool.MaxFreeSockets,
		}),
		Selector: sel,
		Cache: cache.New(cache.Config{
			MaxSize:          cfg.Cache.MaxSize,
			DefaultTTL:       cfg.Cache.DefaultTTL,
			CleanupInterval:  cfg.Cache.CleanupInterval,
			CoalesceRequests: cfg.Cache.CoalesceRequests,
		}),
		Fetcher: fetcher,
	})
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	return &Application{cfg: cfg, log: log, orchestrator: orch}, nil
}

// Start subscribes a background consumer that logs each CallEvent the
// orchestrator publishes. It returns immediately; the consumer runs
// until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	events, cancel := a.orchestrator.Events(ctx)
	a.eventsCancel = cancel

	go func() {
		var deniedStreak uint64
		for ev := range events {
			if ev.Reason != domain.ReasonRateLimited {
				deniedStreak = 0
			}
			switch ev.Reason {
			case domain.ReasonNone:
				a.log.Debug("call completed", "method", ev.Method, "endpoint", ev.Endpoint, "latency", ev.Latency, "cache_hit", ev.CacheHit)
			case domain.ReasonRateLimited:
				deniedStreak++
				a.log.InfoRateLimited(ev.Method, deniedStreak)
			default:
				a.log.ErrorUpstream(ev.Method, ev.Endpoint, ev.Reason, fmt.Errorf("%s", ev.Reason))
			}
		}
	}()

	a.log.Info("rpcchain orchestrator started", "strategy", a.cfg.Selector.Strategy, "endpoints", len(a.cfg.Selector.Endpoints))
	return nil
}

// Stop releases every stage's background goroutines (cache janitor,
// selector scanner, breaker event bus). It does not wait for calls still
// in flight to finish.
func (a *Application) Stop(ctx context.Context) error {
	if a.eventsCancel != nil {
		a.eventsCancel()
	}
	a.orchestrator.Shutdown()
	return nil
}

// Call exposes the orchestrator to callers outside this package (the
// demo loop in main, or a future transport-facing handler).
func (a *Application) Call(ctx context.Context, method string, params any, opts orchestrator.CallOptions) (any, domain.Reason, error) {
	return a.orchestrator.Call(ctx, method, params, opts)
}

// Metrics returns the orchestrator's current aggregate snapshot, the
// sole read the monitoring/dashboard collaborator of spec.md §6 performs.
func (a *Application) Metrics() metrics.Snapshot {
	return a.orchestrator.Metrics()
}

func buildEndpoints(cfgs []config.EndpointConfig) ([]*domain.Endpoint, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("at least one selector.endpoints entry is required")
	}

	endpoints := make([]*domain.Endpoint, 0, len(cfgs))
	for _, ec := range cfgs {
		u, err := url.Parse(ec.URL)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: invalid url %q: %w", ec.ID, ec.URL, err)
		}
		weight := ec.Weight
		if weight <= 0 {
			weight = 1
		}
		endpoints = append(endpoints, &domain.Endpoint{
			ID:     ec.ID,
			URL:    ec.URL,
			Scheme: u.Scheme,
			Host:   u.Host,
			Health: domain.HealthHealthy,
			Weight: weight,
		})
	}
	return endpoints, nil
}
