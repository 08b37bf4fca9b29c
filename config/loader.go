package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Env mirrors the environment variables understood by simple-tunnel.
// Every variable carries the TUNNEL_ prefix, e.g. TUNNEL_RETRY_TIMEOUT.
type Env struct {
	Mode        string `envconfig:"MODE"`
	External    string `envconfig:"EXTERNAL"`
	Internal    string `envconfig:"INTERNAL"`
	Client      string `envconfig:"CLIENT"`
	Server      string `envconfig:"SERVER"`
	Trigger     string `envconfig:"TRIGGER"`
	Orientation string `envconfig:"ORIENTATION"`
	// RetryTimeout is in whole seconds, like the -t flag.
	// It is a pointer so an explicit 0 is distinguishable from unset.
	RetryTimeout *int   `envconfig:"RETRY_TIMEOUT"`
	DialTimeout  int    `envconfig:"DIAL_TIMEOUT"`
	Gate         string `envconfig:"GATE"`
	MetricsAddr  string `envconfig:"METRICS_ADDR"`
	Verbose      *int   `envconfig:"VERBOSE"`
}

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) error {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if env.Mode != "" {
		t, err := ParseTopology(env.Mode)
		if err != nil {
			return fmt.Errorf("%s_MODE: %w", EnvPrefix, err)
		}
		cfg.Topology = t
	}
	if env.External != "" {
		cfg.ExternalAddress = env.External
	}
	if env.Internal != "" {
		cfg.InternalAddress = env.Internal
	}
	if env.Client != "" {
		cfg.ClientAddress = env.Client
	}
	if env.Server != "" {
		cfg.ServerAddress = env.Server
	}
	if env.Trigger != "" {
		cfg.Trigger = Trigger(env.Trigger)
	}
	if env.Orientation != "" {
		cfg.Orientation = Orientation(env.Orientation)
	}
	if env.RetryTimeout != nil {
		cfg.RetryInterval = secondsDuration(*env.RetryTimeout)
	}
	if env.DialTimeout > 0 {
		cfg.DialTimeout = secondsDuration(env.DialTimeout)
	}
	if env.Gate != "" {
		cfg.Gate = GateStrategy(env.Gate)
	}
	if env.MetricsAddr != "" {
		cfg.MetricsAddr = env.MetricsAddr
	}
	if env.Verbose != nil {
		cfg.Verbose = *env.Verbose
	}
	return nil
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
