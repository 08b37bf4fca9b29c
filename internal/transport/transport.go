// Package transport provides abstractions for TCP connection
// establishment.  Transports handle how a connection comes into being,
// dialed out or accepted in, independent of what the tunnel does with
// it afterwards.
package transport

import (
	"context"
	"net"

	tunerr "simpletunnel/internal/errors"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer.
	// Stateless dialers return nil.
	Close() error
}

// AsTCP narrows conn to *net.TCPConn.  The relay relies on half-close
// and socket options that only TCP connections provide.
func AsTCP(conn net.Conn) (*net.TCPConn, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, tunerr.ErrNotTCP
	}
	return tc, nil
}
