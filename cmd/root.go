// Package cmd wires up the CLI flags and dispatches to the topology
// controller.
package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"simpletunnel/config"
	"simpletunnel/internal/core"
	"simpletunnel/internal/metrics"
	"simpletunnel/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X simpletunnel/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives help, version and dry-run output.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// stderr receives log output.
var stderr io.Writer = os.Stderr //nolint:gochecknoglobals

type invocation struct {
	cfg         *config.Config
	fs          *flag.FlagSet
	showHelp    bool
	showVersion bool
}

// Execute parses args and runs the selected tunnel until ctx is done.
func Execute(ctx context.Context, args []string) error {
	inv, err := parse(args)
	if err != nil {
		return err
	}
	// With no arguments the environment alone may select a topology.
	if inv.showHelp || (len(args) == 0 && inv.cfg.Topology == "") {
		printUsage(inv.fs)
		return nil
	}
	if inv.showVersion {
		fmt.Fprintf(stdout, "simple-tunnel %s\n", version)
		return nil
	}

	cfg := inv.cfg
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	collector := metrics.New()

	mode, err := core.Build(cfg, logger, collector)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		fmt.Fprintf(stdout, "%s: %s\n", cfg.Topology, mode)
		return nil
	}

	return run(ctx, cfg, mode, collector, logger)
}

// run drives mode and, when configured, the metrics endpoint.  Either
// one failing stops the other.
func run(ctx context.Context, cfg *config.Config, mode core.Mode, collector *metrics.Collector, logger *util.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		logger.Verbose("serving metrics on http://%s/metrics", ln.Addr())
		g.Go(func() error {
			return collector.Serve(gctx, ln, config.DefaultGracePeriod)
		})
	}

	g.Go(func() error {
		return mode.Run(gctx)
	})

	err := g.Wait()
	logger.Verbose("shutting down\n%s", collector.JSON())
	return err
}

// parse builds the configuration from the environment, then flags.
// Flags win over TUNNEL_* variables.
func parse(args []string) (*invocation, error) {
	cfg := &config.Config{
		RetryInterval: config.DefaultRetryInterval,
		Verbose:       int(util.LogNormal),
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	inv := &invocation{cfg: cfg}
	fs := flag.NewFlagSet("simple-tunnel", flag.ContinueOnError)
	inv.fs = fs

	// ── endpoints ────────────────────────────────────────────────
	fs.StringVarP(&cfg.ExternalAddress, "external", "e", cfg.ExternalAddress, "External address (server-server, client-client)")
	fs.StringVarP(&cfg.InternalAddress, "internal", "i", cfg.InternalAddress, "Internal address (server-server, client-client)")
	fs.StringVarP(&cfg.ClientAddress, "client", "c", cfg.ClientAddress, "Address to connect to (client-server)")
	fs.StringVarP(&cfg.ServerAddress, "server", "s", cfg.ServerAddress, "Address to listen on (client-server)")

	var modeName string
	fs.StringVarP(&modeName, "mode", "m", "", "listen|connect (client-server) or external|internal|both (client-client)")

	// ── dialing ──────────────────────────────────────────────────
	retrySec := int(cfg.RetryInterval / time.Second)
	fs.IntVarP(&retrySec, "timeout", "t", retrySec, "Seconds to wait before retrying a failed connect (0 retries at once)")

	dialSec := int(cfg.DialTimeout / time.Second)
	fs.IntVar(&dialSec, "dial-timeout", dialSec, "Per-attempt connect timeout in seconds (0 = OS default)")

	gate := string(cfg.Gate)
	fs.StringVar(&gate, "gate", gate, "Lazy dial strategy: peek|consume")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve /metrics, /stats and /healthz on this address")
	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration, print the plan and exit")
	fs.BoolVar(&inv.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&inv.showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if inv.showHelp || inv.showVersion {
		return inv, nil
	}

	if rest := fs.Args(); len(rest) > 0 {
		if len(rest) > 1 {
			return nil, fmt.Errorf("unexpected arguments: %v", rest[1:])
		}
		t, err := config.ParseTopology(rest[0])
		if err != nil {
			return nil, err
		}
		cfg.Topology = t
	}

	if modeName != "" {
		switch cfg.Topology {
		case config.TopologyClientServer:
			o, err := config.ParseOrientation(modeName)
			if err != nil {
				return nil, err
			}
			cfg.Orientation = o
		case config.TopologyClientClient:
			tr, err := config.ParseTrigger(modeName)
			if err != nil {
				return nil, err
			}
			cfg.Trigger = tr
		default:
			return nil, fmt.Errorf("--mode is not used by %s", cfg.Topology)
		}
	}

	if retrySec < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}
	if quiet {
		cfg.Verbose = int(util.LogQuiet)
	} else {
		cfg.Verbose += verbose
	}
	cfg.RetryInterval = time.Duration(retrySec) * time.Second
	cfg.DialTimeout = time.Duration(dialSec) * time.Second
	cfg.Gate = config.GateStrategy(gate)

	return inv, nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stdout, `simple-tunnel v%s

Create simple not encrypted tunnels between hosts.

Usage:
  simple-tunnel server-server -e <addr> -i <addr>              Listen on both, join peers
  simple-tunnel client-server -c <addr> -s <addr> -m <mode>    Dial one, listen on the other
  simple-tunnel client-client -e <addr> -i <addr> -m <mode>    Dial both

Options:
`, version)
	fs.SetOutput(stdout)
	fs.PrintDefaults()
	fmt.Fprintf(stdout, `
Environment:
  TUNNEL_MODE, TUNNEL_EXTERNAL, TUNNEL_INTERNAL, TUNNEL_CLIENT, TUNNEL_SERVER,
  TUNNEL_TRIGGER, TUNNEL_ORIENTATION, TUNNEL_RETRY_TIMEOUT, TUNNEL_DIAL_TIMEOUT,
  TUNNEL_GATE, TUNNEL_METRICS_ADDR, TUNNEL_VERBOSE (flags take precedence)

Examples:
  simple-tunnel server-server -e 0.0.0.0:8000 -i 127.0.0.1:9000
  simple-tunnel client-server -c 10.0.0.5:22 -s 0.0.0.0:2222 -m listen
  simple-tunnel client-client -e relay.example.com:8000 -i 127.0.0.1:22 -m external -t 5
`)
}
