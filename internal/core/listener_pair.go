package core

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"simpletunnel/internal/endpoint"
	"simpletunnel/internal/metrics"
	"simpletunnel/internal/session"
	"simpletunnel/util"
)

// ListenerPairMode binds two addresses and joins one inbound connection
// from each into a Channel.
type ListenerPairMode struct {
	External string
	Internal string
	Logger   *util.Logger
	Metrics  *metrics.Collector

	// OnState, if set, observes every state change.
	OnState func(State)
}

func (m *ListenerPairMode) String() string {
	return fmt.Sprintf("listen on %s (external) and %s (internal)", m.External, m.Internal)
}

// Run binds both addresses, then accepts from both concurrently for
// every Channel.  A bind or accept failure is returned as fatal.
func (m *ListenerPairMode) Run(ctx context.Context) error {
	sm := newMachine(m.Logger, m.Metrics, m.OnState)

	ext, err := endpoint.Listen(ctx,
		endpoint.Descriptor{Name: "external", Role: endpoint.Listener, Address: m.External},
		m.Logger, m.Metrics)
	if err != nil {
		return err
	}
	defer ext.Close()

	in, err := endpoint.Listen(ctx,
		endpoint.Descriptor{Name: "internal", Role: endpoint.Listener, Address: m.Internal},
		m.Logger, m.Metrics)
	if err != nil {
		return err
	}
	defer in.Close()

	return sm.loop(ctx, func(ctx context.Context) error {
		sm.enter(Acquiring)

		var left, right *net.TCPConn
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			left, err = ext.Acquire(gctx)
			return err
		})
		g.Go(func() (err error) {
			right, err = in.Acquire(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			closeAll(left, right)
			return err
		}

		sm.relay(ctx, session.New(left, right, ext.Addr(), in.Addr()))
		return nil
	})
}
