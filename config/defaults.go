package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultRetryInterval is the pause between failed dial attempts.
	DefaultRetryInterval = 10 * time.Second

	// DefaultGracePeriod bounds the metrics server shutdown.
	DefaultGracePeriod = 5 * time.Second

	// EnvPrefix prefixes every environment variable, e.g. TUNNEL_EXTERNAL.
	EnvPrefix = "TUNNEL"
)
