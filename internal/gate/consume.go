package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	tunerr "simpletunnel/internal/errors"
	"simpletunnel/util"
)

// Consume reads the first block off the trigger connection and hands
// it back as [Signal.Prefix].
type Consume struct{}

// Wait blocks until the first block arrives or the peer closes.
func (Consume) Wait(ctx context.Context, conn *net.TCPConn) (Signal, error) {
	release := interruptOnCancel(ctx, conn)
	defer release()

	buf := make([]byte, util.DefaultBufSize)
	n, err := conn.Read(buf)
	if n > 0 {
		return Signal{Ready: true, Prefix: buf[:n]}, nil
	}
	if errors.Is(err, io.EOF) {
		return Signal{}, nil
	}
	if ctx.Err() != nil {
		return Signal{}, ctx.Err()
	}
	return Signal{}, tunerr.Wrap("read", fmt.Sprint(conn.RemoteAddr()), err)
}
