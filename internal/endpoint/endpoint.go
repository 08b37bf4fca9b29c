// Package endpoint obtains the live connections a tunnel relays
// between.  An endpoint is either a listener, accepting from a socket
// bound once at startup, or a dialer that connects out and retries
// forever at a fixed interval.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"time"

	"simpletunnel/config"
	tunerr "simpletunnel/internal/errors"
	"simpletunnel/internal/metrics"
	"simpletunnel/internal/retry"
	"simpletunnel/internal/transport"
	"simpletunnel/util"
)

// Role tags an endpoint as passive or active.
type Role int

const (
	Listener Role = iota
	Dialer
)

func (r Role) String() string {
	if r == Listener {
		return "listener"
	}
	return "dialer"
}

// Descriptor is an immutable address plus role, fixed at startup.
type Descriptor struct {
	Name    string // "external", "internal", "client" or "server"
	Role    Role
	Address string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s %s", d.Name, d.Role, d.Address)
}

// Acquirer obtains one live connection per call for its descriptor.
type Acquirer struct {
	Descriptor Descriptor
	Dialer     transport.Dialer
	Retry      *retry.Backoff
	Logger     *util.Logger
	Metrics    *metrics.Collector

	// OnAttempt and OnRetry, when set, observe dial attempts and the
	// waits between them.
	OnAttempt func(d Descriptor, attempt int)
	OnRetry   func(d Descriptor, attempt int, err error, wait time.Duration)

	listener *transport.Listener
}

// Listen binds the descriptor's address and returns a listening
// acquirer.  A bind failure is a fatal [tunerr.ListenerFault].
func Listen(ctx context.Context, d Descriptor, logger *util.Logger, m *metrics.Collector) (*Acquirer, error) {
	ln, err := transport.Listen(ctx, d.Address)
	if err != nil {
		return nil, err
	}
	logger.Verbose("listening on %s (%s)", ln.Addr(), d.Name)
	return &Acquirer{Descriptor: d, Logger: logger, Metrics: m, listener: ln}, nil
}

// Addr returns the bound address for listeners and the configured
// remote address for dialers.
func (a *Acquirer) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.Descriptor.Address
}

// Acquire returns one live connection with TCP_NODELAY set.
//
// Listeners block until a peer connects; an accept failure is fatal.
// Dialers retry every failure at the configured interval until they
// succeed or ctx ends.
func (a *Acquirer) Acquire(ctx context.Context) (*net.TCPConn, error) {
	if a.Descriptor.Role == Listener {
		return a.Accept(ctx)
	}
	return a.Dial(ctx)
}

// Accept waits for the next inbound connection.
func (a *Acquirer) Accept(ctx context.Context) (*net.TCPConn, error) {
	if a.listener == nil {
		return nil, fmt.Errorf("%s: not listening", a.Descriptor.Name)
	}
	a.Logger.Verbose("waiting for connection on %s (%s)...", a.Addr(), a.Descriptor.Name)

	conn, err := a.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	a.Metrics.Accepted()
	a.Logger.Info("accepted %s connection from %s", a.Descriptor.Name, conn.RemoteAddr())

	if err := Prepare(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Dial connects to the remote address, retrying forever.
func (a *Acquirer) Dial(ctx context.Context) (*net.TCPConn, error) {
	var conn *net.TCPConn
	err := a.Policy().Do(ctx, func(attempt int) error {
		if a.OnAttempt != nil {
			a.OnAttempt(a.Descriptor, attempt)
		}
		c, err := a.dial(ctx)
		if err != nil {
			return err
		}
		if err := Prepare(c); err != nil {
			c.Close()
			return retry.Permanent(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// DialOnce makes a single connection attempt without retrying.
func (a *Acquirer) DialOnce(ctx context.Context) (*net.TCPConn, error) {
	conn, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := Prepare(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (a *Acquirer) dial(ctx context.Context) (*net.TCPConn, error) {
	addr := a.Descriptor.Address
	a.Logger.Verbose("connecting to %s (%s)...", addr, a.Descriptor.Name)
	a.Metrics.DialAttempt()

	conn, err := a.Dialer.Dial(ctx, "tcp", addr)
	if err != nil {
		a.Metrics.DialFailure()
		return nil, tunerr.Wrap("dial", addr, err)
	}
	tc, err := transport.AsTCP(conn)
	if err != nil {
		conn.Close()
		return nil, tunerr.Wrap("dial", addr, err)
	}
	a.Logger.Info("connected to %s (%s)", addr, a.Descriptor.Name)
	return tc, nil
}

// Policy returns the acquirer's retry policy with its warning hook
// attached.  Callers that retry a larger attempt around [Acquirer.DialOnce]
// use it so every failure is reported the same way.
func (a *Acquirer) Policy() *retry.Backoff {
	policy := a.Retry
	if policy == nil {
		policy = retry.Fixed(config.DefaultRetryInterval)
	}
	return policy.WithHook(a.retrying)
}

func (a *Acquirer) retrying(attempt int, err error, wait time.Duration) {
	a.Logger.Warn("Failed to connect (%s): %v. Retrying in %s", a.Descriptor.Name, err, wait)
	if a.OnRetry != nil {
		a.OnRetry(a.Descriptor, attempt, err, wait)
	}
}

// Close releases the listening socket or the dialer's resources.
func (a *Acquirer) Close() error {
	if a.listener != nil {
		return a.listener.Close()
	}
	if a.Dialer != nil {
		return a.Dialer.Close()
	}
	return nil
}

// Prepare disables Nagle's algorithm so small forwarded writes are not
// delayed.  Failure is a non-fatal [tunerr.NetworkError].
func Prepare(conn *net.TCPConn) error {
	if err := conn.SetNoDelay(true); err != nil {
		return tunerr.Wrap("setsockopt", fmt.Sprint(conn.RemoteAddr()), err)
	}
	return nil
}
