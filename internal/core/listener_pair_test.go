package core

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	tunerr "simpletunnel/internal/errors"
	"simpletunnel/internal/metrics"
	"simpletunnel/util"
)

// TestListenerPair_Ping verifies bytes sent by a client of the external
// listener reach the client of the internal listener, and back.
func TestListenerPair_Ping(t *testing.T) {
	ext, in := freeAddr(t), freeAddr(t)
	m := metrics.New()
	logger, logs := captureLogger(1)
	start(t, &ListenerPairMode{External: ext, Internal: in, Logger: logger, Metrics: m})

	a := dialEventually(t, ext)
	if _, err := a.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	b := dialEventually(t, in)

	b.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
	got := make([]byte, 4)
	if _, err := io.ReadFull(b, got); err != nil {
		t.Fatalf("read at internal client: %v", err)
	}
	if string(got) != "ping" {
		t.Fatalf("got %q, want %q", got, "ping")
	}

	if _, err := b.Write([]byte("pong")); err != nil {
		t.Fatal(err)
	}
	a.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
	if _, err := io.ReadFull(a, got); err != nil {
		t.Fatalf("read at external client: %v", err)
	}
	if string(got) != "pong" {
		t.Fatalf("got %q, want %q", got, "pong")
	}

	if !strings.Contains(logs.String(), "Created channel: "+ext+" <---> "+in) {
		t.Errorf("missing channel log line:\n%s", logs.String())
	}
	if m.ActiveChannels() != 1 {
		t.Errorf("active channels = %d, want 1", m.ActiveChannels())
	}
}

// TestListenerPair_Sequential verifies a second Channel is served once
// the first has fully closed.
func TestListenerPair_Sequential(t *testing.T) {
	ext, in := freeAddr(t), freeAddr(t)
	m := metrics.New()
	start(t, &ListenerPairMode{External: ext, Internal: in, Logger: util.NewLogger(0), Metrics: m})

	for i := 0; i < 2; i++ {
		a := dialEventually(t, ext)
		b := dialEventually(t, in)

		if _, err := a.Write([]byte("x")); err != nil {
			t.Fatal(err)
		}
		_ = a.CloseWrite()
		_ = b.SetReadDeadline(time.Now().Add(3 * time.Second))
		data, err := io.ReadAll(b)
		if err != nil || string(data) != "x" {
			t.Fatalf("round %d: got %q, %v", i, data, err)
		}
		b.Close()
		a.Close()

		eventually(t, func() bool { return m.ActiveChannels() == 0 }, "channel did not close")
	}

	if m.TotalChannels() != 2 {
		t.Errorf("total channels = %d, want 2", m.TotalChannels())
	}
}

// TestListenerPair_BindConflict verifies an address already in use is a
// fatal listener fault.
func TestListenerPair_BindConflict(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	_, errc := start(t, &ListenerPairMode{
		External: freeAddr(t),
		Internal: busy.Addr().String(),
		Logger:   util.NewLogger(0),
	})

	select {
	case err := <-errc:
		if !tunerr.IsFatal(err) {
			t.Fatalf("expected listener fault, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not fail on bind conflict")
	}
}

func TestListenerPair_CancelReturnsNil(t *testing.T) {
	cancel, errc := start(t, &ListenerPairMode{
		External: freeAddr(t),
		Internal: freeAddr(t),
		Logger:   util.NewLogger(0),
	})

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
