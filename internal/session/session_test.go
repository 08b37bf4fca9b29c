package session

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func tcpPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan *net.TCPConn, 1)
	go func() {
		c, err := ln.AcceptTCP()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()
	dialed, err := net.DialTCP("tcp", nil, ln.Addr().(*net.TCPAddr))
	require.NoError(t, err)
	server := <-accepted
	require.NotNil(t, server)
	return dialed, server
}

func TestChannel_New(t *testing.T) {
	a, b := tcpPair(t)
	ch := New(a, b, "10.0.0.1:7000", "10.0.0.2:22")
	defer ch.Close()

	assert.Len(t, ch.ID, 8)
	assert.Equal(t, "10.0.0.1:7000 <---> 10.0.0.2:22", ch.String())
	assert.False(t, ch.Opened.IsZero())

	other := New(nil, nil, "a", "b")
	assert.NotEqual(t, ch.ID, other.ID)
}

func TestChannel_CloseReportsBothErrors(t *testing.T) {
	a, b := tcpPair(t)
	ch := New(a, b, "l", "r")

	require.NoError(t, ch.Close())

	err := ch.Close()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.True(t, strings.Contains(err.Error(), "closed"))
}

func TestChannel_CloseNil(t *testing.T) {
	ch := New(nil, nil, "l", "r")
	assert.NoError(t, ch.Close())
}
