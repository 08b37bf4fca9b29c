//go:build unix

package gate

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	tunerr "simpletunnel/internal/errors"
)

// Peek inspects the socket receive queue with MSG_PEEK, leaving any
// bytes in place for the relay.
type Peek struct{}

// Wait blocks until the trigger peer has sent data or closed.
func (Peek) Wait(ctx context.Context, conn *net.TCPConn) (Signal, error) {
	addr := fmt.Sprint(conn.RemoteAddr())

	raw, err := conn.SyscallConn()
	if err != nil {
		return Signal{}, tunerr.Wrap("peek", addr, err)
	}

	release := interruptOnCancel(ctx, conn)
	defer release()

	var (
		n    int
		perr error
		buf  [1]byte
	)
	err = raw.Read(func(fd uintptr) bool {
		for {
			n, _, perr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK)
			if perr == unix.EINTR {
				continue
			}
			// EAGAIN: nothing queued yet, let the poller wait.
			return perr != unix.EAGAIN
		}
	})
	if err == nil {
		err = perr
	}
	if err != nil {
		if ctx.Err() != nil {
			return Signal{}, ctx.Err()
		}
		return Signal{}, tunerr.Wrap("peek", addr, err)
	}
	return Signal{Ready: n > 0}, nil
}
