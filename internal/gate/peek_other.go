//go:build !unix

package gate

import (
	"context"
	"net"
)

// Peek falls back to [Consume] where MSG_PEEK is unavailable.
type Peek struct{}

// Wait behaves like [Consume.Wait].
func (Peek) Wait(ctx context.Context, conn *net.TCPConn) (Signal, error) {
	return Consume{}.Wait(ctx, conn)
}
