package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// ReadyTimeoutEnv overrides the readiness timeout, in whole seconds.
	ReadyTimeoutEnv = EnvPrefix + "_READY_TIMEOUT"

	// CIReadyTimeout is used on CI runners, which start images slowly.
	CIReadyTimeout = 90 * time.Second
)

// ReadyTimeout resolves the readiness timeout: ReadyTimeoutEnv if it holds a
// positive integer, then CIReadyTimeout when CI or GITHUB_ACTIONS is set,
// then cfg.Ready.Timeout. A nil cfg falls back to the default.
func ReadyTimeout(cfg *Config) time.Duration {
	if val := os.Getenv(ReadyTimeoutEnv); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return CIReadyTimeout
	}

	if cfg == nil || cfg.Ready.Timeout <= 0 {
		return DefaultConfig().Ready.Timeout
	}
	return cfg.Ready.Timeout
}
