//go:build unix

package gate

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeek_DataLeavesBytesInPlace(t *testing.T) {
	conn := triggerConn(t, func(c *net.TCPConn) {
		c.Write([]byte("ping")) //nolint:errcheck
		c.Close()
	})

	sig, err := Peek{}.Wait(context.Background(), conn)
	require.NoError(t, err)
	assert.True(t, sig.Ready)
	assert.Empty(t, sig.Prefix)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got), "peek must not consume data")
}
