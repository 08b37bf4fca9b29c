package core

import (
	"fmt"

	"simpletunnel/config"
	"simpletunnel/internal/gate"
	"simpletunnel/internal/metrics"
	"simpletunnel/internal/retry"
	"simpletunnel/internal/transport"
	"simpletunnel/util"
)

// Build constructs the Mode for cfg.Topology.  cfg is expected to have
// passed Validate.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	switch cfg.Topology {
	case config.TopologyServerServer:
		return &ListenerPairMode{
			External: cfg.ExternalAddress,
			Internal: cfg.InternalAddress,
			Logger:   logger,
			Metrics:  m,
		}, nil

	case config.TopologyClientServer:
		return &ListenDialMode{
			Client:      cfg.ClientAddress,
			Server:      cfg.ServerAddress,
			Orientation: cfg.Orientation,
			Dialer:      buildDialer(cfg),
			Retry:       buildRetry(cfg),
			Logger:      logger,
			Metrics:     m,
		}, nil

	case config.TopologyClientClient:
		return &DialPairMode{
			External: cfg.ExternalAddress,
			Internal: cfg.InternalAddress,
			Trigger:  cfg.Trigger,
			Gate:     gate.New(cfg.Gate),
			Dialer:   buildDialer(cfg),
			Retry:    buildRetry(cfg),
			Logger:   logger,
			Metrics:  m,
		}, nil

	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Topology)
	}
}

// ── shared helpers ───────────────────────────────────────────────────

func buildDialer(cfg *config.Config) transport.Dialer {
	return &transport.TCPDialer{Timeout: cfg.DialTimeout}
}

// buildRetry honours a zero interval; Validate has already rejected
// negative ones.
func buildRetry(cfg *config.Config) *retry.Backoff {
	return retry.Fixed(cfg.RetryInterval)
}
