// Package config defines the runtime configuration for simple-tunnel and
// provides helpers for parsing topology, orientation and trigger names.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Topology selects which pair of endpoint roles a tunnel uses.
type Topology string

const (
	TopologyServerServer Topology = "server-server" // listener <-> listener
	TopologyClientServer Topology = "client-server" // listener <-> dialer
	TopologyClientClient Topology = "client-client" // dialer <-> dialer
)

// Orientation decides which side of a client-server tunnel is acquired
// first.
type Orientation string

const (
	OrientationListen  Orientation = "listen"  // accept, then dial
	OrientationConnect Orientation = "connect" // dial, then accept
)

// Trigger decides which address of a client-client tunnel is dialed
// first and whether the second dial waits for data.
type Trigger string

const (
	TriggerExternal Trigger = "external"
	TriggerInternal Trigger = "internal"
	TriggerBoth     Trigger = "both"
)

// GateStrategy selects how the lazy dial inspects the trigger connection.
type GateStrategy string

const (
	GatePeek    GateStrategy = "peek"
	GateConsume GateStrategy = "consume"
)

// Config holds every tuneable for one simple-tunnel process.
type Config struct {
	Topology Topology

	// ── server-server / client-client ────────────────────────────────
	ExternalAddress string
	InternalAddress string
	Trigger         Trigger

	// ── client-server ────────────────────────────────────────────────
	ClientAddress string // dialed
	ServerAddress string // bound and accepted from
	Orientation   Orientation

	// ── Dialing ──────────────────────────────────────────────────────
	RetryInterval time.Duration
	DialTimeout   time.Duration
	Gate          GateStrategy

	// ── Output ───────────────────────────────────────────────────────
	Verbose     int
	MetricsAddr string
	DryRun      bool
}

// ── Name parsers ─────────────────────────────────────────────────────

// ParseTopology accepts the three subcommand names.
func ParseTopology(s string) (Topology, error) {
	switch t := Topology(s); t {
	case TopologyServerServer, TopologyClientServer, TopologyClientClient:
		return t, nil
	}
	return "", fmt.Errorf("unknown mode %q – expected server-server, client-server or client-client", s)
}

// ParseOrientation accepts "listen" or "connect".
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(s); o {
	case OrientationListen, OrientationConnect:
		return o, nil
	}
	return "", fmt.Errorf("invalid mode %q, expected one of listen or connect", s)
}

// ParseTrigger accepts "external", "internal" or "both".
func ParseTrigger(s string) (Trigger, error) {
	switch tr := Trigger(s); tr {
	case TriggerExternal, TriggerInternal, TriggerBoth:
		return tr, nil
	}
	return "", fmt.Errorf("invalid mode %q, expected one of external, internal or both", s)
}

// ParseGate accepts "peek" or "consume".
func ParseGate(s string) (GateStrategy, error) {
	switch g := GateStrategy(s); g {
	case GatePeek, GateConsume:
		return g, nil
	}
	return "", fmt.Errorf("invalid gate %q, expected peek or consume", s)
}

// ── Address helpers ──────────────────────────────────────────────────

// ValidateAddress checks that addr is host:port with a numeric port in
// range.  An empty host is allowed (bind on all interfaces).
func ValidateAddress(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port %q in %q", portStr, addr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range 0-65535", port)
	}
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Topology {
	case TopologyServerServer, TopologyClientClient:
		if c.ExternalAddress == "" {
			return fmt.Errorf("%s mode requires --external", c.Topology)
		}
		if c.InternalAddress == "" {
			return fmt.Errorf("%s mode requires --internal", c.Topology)
		}
		if err := ValidateAddress(c.ExternalAddress); err != nil {
			return fmt.Errorf("external: %w", err)
		}
		if err := ValidateAddress(c.InternalAddress); err != nil {
			return fmt.Errorf("internal: %w", err)
		}
		if c.Topology == TopologyServerServer && c.ExternalAddress == c.InternalAddress {
			return fmt.Errorf("external and internal addresses must differ")
		}
		if c.Topology == TopologyClientClient {
			if _, err := ParseTrigger(string(c.Trigger)); err != nil {
				return err
			}
		}
	case TopologyClientServer:
		if c.ClientAddress == "" {
			return fmt.Errorf("client-server mode requires --client")
		}
		if c.ServerAddress == "" {
			return fmt.Errorf("client-server mode requires --server")
		}
		if err := ValidateAddress(c.ClientAddress); err != nil {
			return fmt.Errorf("client: %w", err)
		}
		if err := ValidateAddress(c.ServerAddress); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		if _, err := ParseOrientation(string(c.Orientation)); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("mode is required (use --help for usage)")
	default:
		return fmt.Errorf("unknown mode %q", c.Topology)
	}

	if c.RetryInterval < 0 {
		return fmt.Errorf("retry timeout must not be negative")
	}
	if c.Gate != "" {
		if _, err := ParseGate(string(c.Gate)); err != nil {
			return err
		}
	}
	if c.MetricsAddr != "" {
		if err := ValidateAddress(c.MetricsAddr); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

// ApplyDefaults fills zero-valued tuneables from defaults.go.
// RetryInterval is left alone: zero means retry without waiting, and
// callers that want DefaultRetryInterval set it before overlaying input.
func (c *Config) ApplyDefaults() {
	if c.Gate == "" {
		c.Gate = GatePeek
	}
}
