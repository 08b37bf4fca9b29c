// Package relay moves bytes between the two connections of a Channel.
//
// Each direction is an independent forwarding goroutine that owns the
// read half of one connection and the write half of the other, so no
// locking is needed on the hot path.  One direction finishing never
// closes the other: it only half-closes its destination, letting the
// peer see end-of-stream while trailing bytes keep flowing the other
// way.
package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"simpletunnel/internal/metrics"
	"simpletunnel/internal/session"
	"simpletunnel/util"
)

// Stats reports how many bytes each direction delivered.
type Stats struct {
	LeftToRight int64
	RightToLeft int64
}

// Relay copies data bidirectionally between the two sides of a Channel.
type Relay struct {
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Run forwards Left→Right and Right→Left concurrently and returns once
// both directions have finished.  Both connections are closed on
// return.  Cancelling ctx closes them early to unblock pending I/O.
func (r *Relay) Run(ctx context.Context, ch *session.Channel) Stats {
	var (
		wg    sync.WaitGroup
		stats Stats
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		stats.LeftToRight = r.Forward(ch.Right, ch.Left, ch.Pending, metrics.LeftToRight)
	}()
	go func() {
		defer wg.Done()
		stats.RightToLeft = r.Forward(ch.Left, ch.Right, nil, metrics.RightToLeft)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		ch.Close() //nolint:errcheck
		<-done
	}

	if err := ch.Close(); err != nil {
		r.Logger.Debug("close channel %s: %v", ch.ID, err)
	}
	return stats
}

// Forward writes pending, then copies src into dst one block at a time
// until src reaches end-of-stream or either side fails.  Failures are
// logged, never returned.  On exit dst is half-closed for writing so
// its peer observes end-of-stream.
func (r *Relay) Forward(dst, src *net.TCPConn, pending []byte, dir metrics.Direction) int64 {
	var total int64

	if len(pending) > 0 {
		if _, err := dst.Write(pending); err != nil {
			r.warn("Failed to write to socket: %v", err)
			r.halfClose(dst)
			return total
		}
		total += int64(len(pending))
		r.Metrics.BytesForwarded(dir, int64(len(pending)))
	}

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			// Write the exact bytes read before reading the next block,
			// so a slow consumer throttles this direction's reader.
			if _, werr := dst.Write(buf[:n]); werr != nil {
				r.warn("Failed to write to socket: %v", werr)
				break
			}
			total += int64(n)
			r.Metrics.BytesForwarded(dir, int64(n))
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				r.warn("Failed to read from socket: %v", rerr)
			}
			break
		}
	}

	r.halfClose(dst)
	return total
}

func (r *Relay) halfClose(dst *net.TCPConn) {
	if err := dst.CloseWrite(); err != nil && !util.IsHarmless(err) {
		r.Logger.Debug("half-close %s: %v", dst.RemoteAddr(), err)
	}
}

// warn logs a relay I/O failure.  Errors caused by this process closing
// the connection during shutdown are demoted to debug.
func (r *Relay) warn(format string, err error) {
	if errors.Is(err, net.ErrClosed) {
		r.Logger.Debug(format, err)
		return
	}
	r.Logger.Warn(format, err)
	r.Metrics.RecordError(err.Error())
}
