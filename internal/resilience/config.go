package resilience

import "time"

// Circuit breaker settings for reaction modules.
const (
	// Default: a module that fails five notifications in a row is
	// suspended for a minute, then gets one trial call.
	DefaultThreshold         = 5
	DefaultResetTimeout      = time.Minute
	DefaultHalfOpenSuccesses = 1

	// Strict: used for modules that talk to remote services.
	StrictThreshold         = 3
	StrictResetTimeout      = 2 * time.Minute
	StrictHalfOpenSuccesses = 2
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns the settings used for local modules.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// StrictConfig returns the settings used for remote modules.
func StrictConfig() Config {
	return Config{
		Threshold:         StrictThreshold,
		ResetTimeout:      StrictResetTimeout,
		HalfOpenSuccesses: StrictHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
