package resilience

import (
	"time"

	"github.com/sells-group/macro-cli/internal/config"
)

// RetryFromConfig overlays the configured provider retry settings on the
// defaults. Zero values keep the default.
func RetryFromConfig(rc config.RetryConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if rc.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(rc.InitialBackoffMs) * time.Millisecond
	}
	if rc.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(rc.MaxBackoffMs) * time.Millisecond
	}
	return cfg
}

// BreakerFromConfig does the same for circuit breakers.
func BreakerFromConfig(cc config.CircuitConfig) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if cc.FailureThreshold > 0 {
		cfg.FailureThreshold = cc.FailureThreshold
	}
	if cc.ResetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(cc.ResetTimeoutSecs) * time.Second
	}
	return cfg
}
