// Package session represents one Channel: the pairing of two live
// connections for a single relay session.
//
// A Channel owns both connections from the moment the topology
// controller has acquired them until both relay directions have
// finished.  Nothing survives a Channel; the next one starts clean.
package session

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Channel pairs the two live connections of one relay session.  Left
// is the side acquired first by the topology (external, client or
// trigger); Right is its counterpart.
type Channel struct {
	ID         string
	Left       *net.TCPConn
	Right      *net.TCPConn
	LeftLabel  string
	RightLabel string
	Opened     time.Time

	// Pending holds bytes already consumed from Left that must reach
	// Right before anything else read from Left.
	Pending []byte
}

// New creates a Channel bound to the given connection pair.
func New(left, right *net.TCPConn, leftLabel, rightLabel string) *Channel {
	return &Channel{
		ID:         uuid.NewString()[:8],
		Left:       left,
		Right:      right,
		LeftLabel:  leftLabel,
		RightLabel: rightLabel,
		Opened:     time.Now(),
	}
}

// String renders the channel the way it is announced in the log.
func (c *Channel) String() string {
	return fmt.Sprintf("%s <---> %s", c.LeftLabel, c.RightLabel)
}

// Close closes both connections and reports every failure.
func (c *Channel) Close() error {
	return multierr.Combine(closeConn(c.Left), closeConn(c.Right))
}

func closeConn(conn *net.TCPConn) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}
