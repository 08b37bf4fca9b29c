package core

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"simpletunnel/util"
)

// syncBuffer is a bytes.Buffer safe to read while a mode logs into it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogger(verbosity int) (*util.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	l := util.NewLogger(verbosity)
	l.SetTimestamps(false)
	l.SetOutput(buf)
	return l, buf
}

func freeAddr(t *testing.T) string {
	t.Helper()
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	return util.FormatAddr("127.0.0.1", port)
}

// dialEventually connects to addr, retrying while the mode under test
// is still binding.
func dialEventually(t *testing.T, addr string) *net.TCPConn {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		c, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			t.Cleanup(func() { c.Close() })
			return c.(*net.TCPConn)
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial %s: %v", addr, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// start runs mode in the background.  The returned channel yields Run's
// result; cleanup cancels the mode and waits for it.
func start(t *testing.T, mode Mode) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		errc <- mode.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("mode did not stop after cancel")
		}
	})
	return cancel, errc
}

// peer is a loopback server the mode under test dials into.  Each
// accepted connection is handed to serve on its own goroutine.
type peer struct {
	ln      net.Listener
	mu      sync.Mutex
	accepts int
}

func newPeer(t *testing.T, addr string, serve func(n int, c *net.TCPConn)) *peer {
	t.Helper()
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	p := &peer{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			p.mu.Lock()
			p.accepts++
			n := p.accepts
			p.mu.Unlock()
			go func() {
				defer c.Close()
				serve(n, c.(*net.TCPConn))
			}()
		}
	}()
	return p
}

func (p *peer) Addr() string { return p.ln.Addr().String() }

func (p *peer) Accepts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepts
}

// hold keeps a connection open without sending until the test ends.
func hold(t *testing.T) func(int, *net.TCPConn) {
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	return func(_ int, c *net.TCPConn) { <-stop }
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
