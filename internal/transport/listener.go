package transport

import (
	"context"
	"net"
	"time"

	tunerr "simpletunnel/internal/errors"
)

// Listener is a TCP listening socket bound once and accepted from for
// the lifetime of a topology controller.
type Listener struct {
	ln *net.TCPListener
}

// Listen binds address.  A bind failure is a [tunerr.ListenerFault].
func Listen(ctx context.Context, address string) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, tunerr.Fatal("listen", address, err)
	}
	return &Listener{ln: ln.(*net.TCPListener)}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept blocks until an inbound connection arrives or ctx is done.
// Any other accept failure is a [tunerr.ListenerFault].
func (l *Listener) Accept(ctx context.Context) (*net.TCPConn, error) {
	// Cancellation unblocks AcceptTCP by moving the deadline into the
	// past; the deadline is cleared again before returning.
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		l.ln.SetDeadline(time.Unix(1, 0)) //nolint:errcheck
		close(fired)
	})
	conn, err := l.ln.AcceptTCP()
	if !stop() {
		<-fired
		l.ln.SetDeadline(time.Time{}) //nolint:errcheck
		if conn != nil {
			conn.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, tunerr.Fatal("accept", l.ln.Addr().String(), err)
	}
	return conn, nil
}

// Close stops listening.
func (l *Listener) Close() error { return l.ln.Close() }
