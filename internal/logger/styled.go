// internal/logger/styled.go
package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"rpcchain/internal/core/domain"
	"rpcchain/theme"
)

// StyledLogger wraps slog.Logger with theme-aware formatting methods for
// the pipeline events worth a dedicated log line: rate-limit denials,
// circuit breaker transitions, endpoint health changes and upstream call
// failures. Grounded on olla's internal/logger/styled.go.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger creates a new styled logger with the given theme.
func NewStyledLogger(logger *slog.Logger, t *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: logger, theme: t}
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

func (sl *StyledLogger) InfoWithEndpoint(msg string, endpointID string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style(*sl.theme.Endpoint).Sprint(endpointID))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithEndpoint(msg string, endpointID string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style(*sl.theme.Endpoint).Sprint(endpointID))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) ErrorWithEndpoint(msg string, endpointID string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style(*sl.theme.Endpoint).Sprint(endpointID))
	sl.logger.Error(styledMsg, args...)
}

// InfoRateLimited logs a rate-limiter admission decision; deniedStreak is
// the number of consecutive denials since the last admission.
func (sl *StyledLogger) InfoRateLimited(method string, deniedStreak uint64) {
	styledMsg := fmt.Sprintf("call rate limited: %s %s", method, pterm.Style(*sl.theme.Muted).Sprint("(", deniedStreak, " consecutive)"))
	sl.logger.Info(styledMsg)
}

// InfoCircuitState logs a circuit breaker transition, coloured by the
// state it entered.
func (sl *StyledLogger) InfoCircuitState(key string, from, to domain.CircuitState) {
	var style *pterm.Style
	switch to {
	case domain.CircuitClosed:
		style = sl.theme.HealthHealthy
	case domain.CircuitHalfOpen:
		style = sl.theme.HealthDegraded
	default:
		style = sl.theme.HealthOffline
	}
	styledMsg := fmt.Sprintf("circuit %s: %s -> %s", pterm.Style(*sl.theme.Endpoint).Sprint(key), from, pterm.Style(*style).Sprint(to))
	sl.logger.Info(styledMsg)
}

// InfoEndpointHealth logs an endpoint's health classification, the way
// olla's InfoHealthStatus names an endpoint and its health in one line.
func (sl *StyledLogger) InfoEndpointHealth(msg, endpointID string, health domain.HealthState, args ...any) {
	var style *pterm.Style
	switch health {
	case domain.HealthHealthy:
		style = sl.theme.HealthHealthy
	case domain.HealthDegraded:
		style = sl.theme.HealthDegraded
	default:
		style = sl.theme.HealthOffline
	}
	styledMsg := fmt.Sprintf("%s %s is %s", msg, pterm.Style(*sl.theme.Endpoint).Sprint(endpointID), pterm.Style(*style).Sprint(health))
	sl.logger.Info(styledMsg, args...)
}

// ErrorUpstream logs an upstream call failure tagged with its Reason.
func (sl *StyledLogger) ErrorUpstream(method, endpointID string, reason domain.Reason, err error) {
	styledMsg := fmt.Sprintf("upstream call failed: %s %s", method, pterm.Style(*sl.theme.Endpoint).Sprint(endpointID))
	sl.logger.Error(styledMsg, "reason", reason, "error", err)
}

// GetUnderlying returns the underlying slog.Logger for call sites that
// need direct access.
func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

// With creates a new StyledLogger with additional key-value pairs.
func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

// NewWithTheme creates both a regular logger and a styled logger sharing
// the same handler chain.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	log, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	appTheme := theme.GetTheme(cfg.Theme)
	styled := NewStyledLogger(log, appTheme)

	return log, styled, cleanup, nil
}
