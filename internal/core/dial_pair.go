package core

import (
	"context"
	"fmt"
	"time"

	"simpletunnel/config"
	"simpletunnel/internal/endpoint"
	"simpletunnel/internal/gate"
	"simpletunnel/internal/metrics"
	"simpletunnel/internal/retry"
	"simpletunnel/internal/session"
	"simpletunnel/internal/transport"
	"simpletunnel/util"
)

// DialPairMode connects out to both addresses.  With a single trigger
// the second dial waits until the first connection shows data; with
// TriggerBoth both are dialed eagerly, external first.
type DialPairMode struct {
	External string
	Internal string
	Trigger  config.Trigger
	Gate     gate.Gate
	Dialer   transport.Dialer
	Retry    *retry.Backoff
	Logger   *util.Logger
	Metrics  *metrics.Collector

	// OnState, if set, observes every state change.
	OnState func(State)
}

func (m *DialPairMode) String() string {
	switch m.Trigger {
	case config.TriggerInternal:
		return fmt.Sprintf("connect to %s (internal), on data connect to %s (external)", m.Internal, m.External)
	case config.TriggerBoth:
		return fmt.Sprintf("connect to %s (external), then %s (internal)", m.External, m.Internal)
	default:
		return fmt.Sprintf("connect to %s (external), on data connect to %s (internal)", m.External, m.Internal)
	}
}

// Run loops over Channels until ctx is done.  Dial failures are
// retried forever, so Run only returns nil.
func (m *DialPairMode) Run(ctx context.Context) error {
	sm := newMachine(m.Logger, m.Metrics, m.OnState)

	ext := m.acquirer(sm, "external", m.External)
	in := m.acquirer(sm, "internal", m.Internal)
	defer ext.Close()
	defer in.Close()

	switch m.Trigger {
	case config.TriggerBoth:
		return sm.loop(ctx, func(ctx context.Context) error {
			return m.dialBoth(ctx, sm, ext, in)
		})
	case config.TriggerInternal:
		return sm.loop(ctx, func(ctx context.Context) error {
			return m.dialOnData(ctx, sm, in, ext)
		})
	default:
		return sm.loop(ctx, func(ctx context.Context) error {
			return m.dialOnData(ctx, sm, ext, in)
		})
	}
}

func (m *DialPairMode) acquirer(sm *machine, name, addr string) *endpoint.Acquirer {
	return &endpoint.Acquirer{
		Descriptor: endpoint.Descriptor{Name: name, Role: endpoint.Dialer, Address: addr},
		Dialer:     m.Dialer,
		Retry:      m.Retry,
		Logger:     m.Logger,
		Metrics:    m.Metrics,
		OnAttempt:  func(endpoint.Descriptor, int) { sm.enter(Acquiring) },
		OnRetry:    func(endpoint.Descriptor, int, error, time.Duration) { sm.enter(Retrying) },
	}
}

// dialOnData dials trigger, waits on the gate and only then dials
// target.  A trigger that closes without sending anything ends the
// attempt without touching target.
func (m *DialPairMode) dialOnData(ctx context.Context, sm *machine, trigger, target *endpoint.Acquirer) error {
	tc, err := trigger.Acquire(ctx)
	if err != nil {
		return err
	}

	g := m.Gate
	if g == nil {
		g = gate.New(config.GatePeek)
	}
	m.Logger.Verbose("waiting for data on %s (%s)...", trigger.Addr(), trigger.Descriptor.Name)
	sig, err := g.Wait(ctx, tc)
	if err != nil {
		tc.Close()
		return err
	}
	if !sig.Ready {
		tc.Close()
		m.Metrics.GateSkipped()
		m.Logger.Verbose("%s closed without sending data, %s not dialed", trigger.Descriptor.Name, target.Descriptor.Name)
		return nil
	}

	out, err := target.Acquire(ctx)
	if err != nil {
		tc.Close()
		return err
	}

	ch := session.New(tc, out, trigger.Addr(), target.Addr())
	ch.Pending = sig.Prefix
	sm.relay(ctx, ch)
	return nil
}

// dialBoth dials external, then internal.  The external connection is
// held while internal retries.
func (m *DialPairMode) dialBoth(ctx context.Context, sm *machine, ext, in *endpoint.Acquirer) error {
	left, err := ext.Acquire(ctx)
	if err != nil {
		return err
	}
	right, err := in.Acquire(ctx)
	if err != nil {
		left.Close()
		return err
	}
	sm.relay(ctx, session.New(left, right, ext.Addr(), in.Addr()))
	return nil
}
