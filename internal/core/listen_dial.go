package core

import (
	"context"
	"fmt"
	"net"
	"time"

	"simpletunnel/config"
	"simpletunnel/internal/endpoint"
	tunerr "simpletunnel/internal/errors"
	"simpletunnel/internal/metrics"
	"simpletunnel/internal/retry"
	"simpletunnel/internal/session"
	"simpletunnel/internal/transport"
	"simpletunnel/util"
)

// ListenDialMode pairs an inbound connection on Server with an outbound
// connection to Client.  Orientation decides which side is acquired
// first.
type ListenDialMode struct {
	Client      string // dialed
	Server      string // bound
	Orientation config.Orientation
	Dialer      transport.Dialer
	Retry       *retry.Backoff
	Logger      *util.Logger
	Metrics     *metrics.Collector

	// OnState, if set, observes every state change.
	OnState func(State)
}

func (m *ListenDialMode) String() string {
	if m.Orientation == config.OrientationConnect {
		return fmt.Sprintf("connect to %s (client), then accept on %s (server)", m.Client, m.Server)
	}
	return fmt.Sprintf("accept on %s (server), then connect to %s (client)", m.Server, m.Client)
}

// Run binds Server and loops over Channels until ctx is done or the
// listener faults.
func (m *ListenDialMode) Run(ctx context.Context) error {
	sm := newMachine(m.Logger, m.Metrics, m.OnState)

	server, err := endpoint.Listen(ctx,
		endpoint.Descriptor{Name: "server", Role: endpoint.Listener, Address: m.Server},
		m.Logger, m.Metrics)
	if err != nil {
		return err
	}
	defer server.Close()

	client := &endpoint.Acquirer{
		Descriptor: endpoint.Descriptor{Name: "client", Role: endpoint.Dialer, Address: m.Client},
		Dialer:     m.Dialer,
		Retry:      m.Retry,
		Logger:     m.Logger,
		Metrics:    m.Metrics,
		OnAttempt:  func(endpoint.Descriptor, int) { sm.enter(Acquiring) },
		OnRetry:    func(endpoint.Descriptor, int, error, time.Duration) { sm.enter(Retrying) },
	}
	defer client.Close()

	if m.Orientation == config.OrientationConnect {
		return sm.loop(ctx, func(ctx context.Context) error {
			return m.connectFirst(ctx, sm, server, client)
		})
	}
	return sm.loop(ctx, func(ctx context.Context) error {
		return m.acceptFirst(ctx, sm, server, client)
	})
}

// acceptFirst accepts, then dials once.  A failed dial discards the
// accepted connection and the whole attempt is retried, so every retry
// waits for a fresh inbound peer.  A socket option failure on the
// dialed connection ends the attempt without a retry.
func (m *ListenDialMode) acceptFirst(ctx context.Context, sm *machine, server, client *endpoint.Acquirer) error {
	var in, out *net.TCPConn
	err := client.Policy().Do(ctx, func(int) error {
		sm.enter(Acquiring)
		c, err := server.Acquire(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		out, err = client.DialOnce(ctx)
		if err != nil {
			c.Close()
			if tunerr.IsOptionFailure(err) {
				return retry.Permanent(err)
			}
			return err
		}
		in = c
		return nil
	})
	if err != nil {
		return err
	}
	sm.relay(ctx, session.New(in, out, server.Addr(), client.Addr()))
	return nil
}

// connectFirst dials with retry, then waits for the inbound peer.
func (m *ListenDialMode) connectFirst(ctx context.Context, sm *machine, server, client *endpoint.Acquirer) error {
	sm.enter(Acquiring)
	out, err := client.Acquire(ctx)
	if err != nil {
		return err
	}
	in, err := server.Acquire(ctx)
	if err != nil {
		out.Close()
		return err
	}
	sm.relay(ctx, session.New(out, in, client.Addr(), server.Addr()))
	return nil
}
