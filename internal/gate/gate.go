// Package gate decides whether a dialer↔dialer tunnel should dial its
// target at all.  The trigger connection is inspected first; a peer
// that connects and leaves without sending anything never causes a
// downstream connection.
package gate

import (
	"context"
	"net"
	"time"

	"simpletunnel/config"
)

// Signal is the outcome of waiting on a trigger connection.
type Signal struct {
	// Ready is true once at least one byte has arrived.  False means
	// the peer closed the connection without sending data.
	Ready bool
	// Prefix holds bytes the gate consumed to find out.  They must be
	// delivered to the target before anything else.  Always empty for
	// the peek strategy.
	Prefix []byte
}

// Gate waits for evidence of incoming data on a trigger connection.
type Gate interface {
	Wait(ctx context.Context, conn *net.TCPConn) (Signal, error)
}

// New returns the gate for strategy.
func New(strategy config.GateStrategy) Gate {
	if strategy == config.GateConsume {
		return Consume{}
	}
	return Peek{}
}

// interruptOnCancel pushes conn's read deadline into the past when ctx
// ends, unblocking a pending read.  The returned func must be called
// once the read has returned; it clears the deadline again.
func interruptOnCancel(ctx context.Context, conn *net.TCPConn) func() {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Unix(1, 0)) //nolint:errcheck
		close(fired)
	})
	return func() {
		if !stop() {
			<-fired
			conn.SetReadDeadline(time.Time{}) //nolint:errcheck
		}
	}
}
