package breaker

import "time"

// Config configures a CircuitBreaker's per-key state machine.
//
// VolumeThreshold and ErrorThresholdPercentage are optional: when
// ErrorThresholdPercentage is zero the breaker opens purely on
// FailureThreshold consecutive failures, as olla's unifier breaker does.
type Config struct {
	FailureThreshold         int
	SuccessThreshold         int
	CooldownPeriod           time.Duration
	VolumeThreshold          int
	ErrorThresholdPercentage float64
	OperationTimeout         time.Duration
	// RingSize bounds the per-key diagnostic trace. Zero defaults to 100.
	RingSize int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.CooldownPeriod <= 0 {
		c.CooldownPeriod = 30 * time.Second
	}
	if c.RingSize <= 0 {
		c.RingSize = 100
	}
	return c
}
