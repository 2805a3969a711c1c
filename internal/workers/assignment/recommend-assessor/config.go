// internal/workers/assignment/recommend-assessor/config.go
package recommendassessor

import (
	"time"

	"assessor-dispatch/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	// Timeout bounds the whole job, including completing it on the broker.
	Timeout time.Duration
	// WaitTimeout bounds how long the handler waits for route estimates
	// before reporting the session as it stands.
	WaitTimeout time.Duration
}

func NewConfig(appCfg *config.Config) *Config {
	wc := config.GetWorkerConfig(appCfg, TaskType)
	cfg := &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
		WaitTimeout:   config.GetDuration(appCfg.Assignment.SessionTimeout),
	}
	if cfg.WaitTimeout <= 0 || cfg.WaitTimeout >= cfg.Timeout {
		cfg.WaitTimeout = cfg.Timeout / 2
	}
	return cfg
}
