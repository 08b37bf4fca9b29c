// Package core is the topology controller.  It composes endpoint
// acquirers, the lazy-dial gate and the relay into complete tunnel
// modes and provides a builder that selects the right mode from a
// Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  endpoint / gate  →  session  →  relay  →  core  →  cmd (CLI)
//
// Every mode is a loop over Channel lifecycles.  Channels are strictly
// sequential: the next pair of connections is not acquired until both
// relay directions of the current Channel have finished.
package core

import (
	"context"
	"fmt"
	"net"
	"time"

	tunerr "simpletunnel/internal/errors"
	"simpletunnel/internal/metrics"
	"simpletunnel/internal/relay"
	"simpletunnel/internal/session"
	"simpletunnel/util"
)

// Mode represents one tunnel topology.  Run blocks until ctx is done
// (returning nil) or a listener fault occurs (returning it).
type Mode interface {
	Run(ctx context.Context) error
}

// State is the controller's position in a Channel lifecycle.
type State int

const (
	Idle      State = iota // between Channels
	Acquiring              // accepting or dialing endpoints
	Relaying               // a Channel is live
	Retrying               // waiting out the retry interval
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Relaying:
		return "relaying"
	case Retrying:
		return "retrying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// machine tracks the state of one running mode.  It is only touched
// from the goroutine running the mode's loop.
type machine struct {
	state   State
	logger  *util.Logger
	metrics *metrics.Collector
	observe func(State)
}

func newMachine(logger *util.Logger, m *metrics.Collector, observe func(State)) *machine {
	return &machine{state: Idle, logger: logger, metrics: m, observe: observe}
}

func (m *machine) enter(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state %s -> %s", m.state, s)
	m.state = s
	m.metrics.Transition()
	if m.observe != nil {
		m.observe(s)
	}
}

// loop runs attempt repeatedly until ctx ends or attempt fails with a
// listener fault.  Any other failure ends only that attempt.
func (m *machine) loop(ctx context.Context, attempt func(context.Context) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := attempt(ctx)
		m.enter(Idle)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case tunerr.IsFatal(err):
			return err
		default:
			m.logger.Warn("Channel attempt failed: %v", err)
			m.metrics.RecordError(err.Error())
		}
	}
}

// relay runs ch to completion.
func (m *machine) relay(ctx context.Context, ch *session.Channel) {
	m.enter(Relaying)
	m.logger.Info("Created channel: %s", ch)
	m.metrics.ChannelOpened()

	r := &relay.Relay{Logger: m.logger.Named("ch " + ch.ID), Metrics: m.metrics}
	stats := r.Run(ctx, ch)

	m.metrics.ChannelClosed()
	m.logger.Info("Channel closed: %s (%d bytes out, %d bytes back, %s)",
		ch, stats.LeftToRight, stats.RightToLeft, time.Since(ch.Opened).Truncate(time.Millisecond))
}

func closeAll(conns ...*net.TCPConn) {
	for _, c := range conns {
		if c != nil {
			c.Close()
		}
	}
}
