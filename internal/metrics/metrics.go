// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a tunnel process.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Direction identifies one relay direction of a channel.
type Direction int

const (
	// LeftToRight carries bytes from the first-acquired side (external,
	// client or trigger) to the second.
	LeftToRight Direction = iota
	// RightToLeft carries the reply traffic.
	RightToLeft
)

func (d Direction) String() string {
	if d == LeftToRight {
		return "left_to_right"
	}
	return "right_to_left"
}

// Collector tracks runtime metrics for a tunnel process.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	channelsActive atomic.Int64
	channelsTotal  atomic.Int64
	bytesLR        atomic.Int64
	bytesRL        atomic.Int64
	dialAttempts   atomic.Int64
	dialFailures   atomic.Int64
	acceptsTotal   atomic.Int64
	gateSkips      atomic.Int64
	errorsTotal    atomic.Int64
	transitions    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastChannel  time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Channel metrics ──────────────────────────────────────────────────

// ChannelOpened increments both the active and total counters.
func (c *Collector) ChannelOpened() {
	if c == nil {
		return
	}
	c.channelsActive.Add(1)
	c.channelsTotal.Add(1)
	c.mu.Lock()
	c.lastChannel = time.Now()
	c.mu.Unlock()
}

// ChannelClosed decrements the active channel counter.
func (c *Collector) ChannelClosed() {
	if c == nil {
		return
	}
	c.channelsActive.Add(-1)
}

// ActiveChannels returns the number of channels currently relaying.
func (c *Collector) ActiveChannels() int64 {
	if c == nil {
		return 0
	}
	return c.channelsActive.Load()
}

// TotalChannels returns the lifetime channel count.
func (c *Collector) TotalChannels() int64 {
	if c == nil {
		return 0
	}
	return c.channelsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesForwarded records n bytes relayed in direction d.
func (c *Collector) BytesForwarded(d Direction, n int64) {
	if c == nil {
		return
	}
	if d == LeftToRight {
		c.bytesLR.Add(n)
	} else {
		c.bytesRL.Add(n)
	}
}

// TotalBytes returns the bytes relayed in direction d.
func (c *Collector) TotalBytes(d Direction) int64 {
	if c == nil {
		return 0
	}
	if d == LeftToRight {
		return c.bytesLR.Load()
	}
	return c.bytesRL.Load()
}

// ── Endpoint metrics ─────────────────────────────────────────────────

// DialAttempt records one outbound connection attempt.
func (c *Collector) DialAttempt() {
	if c == nil {
		return
	}
	c.dialAttempts.Add(1)
}

// DialFailure records a failed outbound connection attempt.
func (c *Collector) DialFailure() {
	if c == nil {
		return
	}
	c.dialFailures.Add(1)
}

// DialFailures returns the total failed dial count.
func (c *Collector) DialFailures() int64 {
	if c == nil {
		return 0
	}
	return c.dialFailures.Load()
}

// Accepted records one inbound connection.
func (c *Collector) Accepted() {
	if c == nil {
		return
	}
	c.acceptsTotal.Add(1)
}

// GateSkipped records a trigger connection that closed without data.
func (c *Collector) GateSkipped() {
	if c == nil {
		return
	}
	c.gateSkips.Add(1)
}

// GateSkips returns how many trigger connections carried no data.
func (c *Collector) GateSkips() int64 {
	if c == nil {
		return 0
	}
	return c.gateSkips.Load()
}

// Transition records one topology controller state change.
func (c *Collector) Transition() {
	if c == nil {
		return
	}
	c.transitions.Add(1)
}

// Transitions returns how many state changes have been recorded.
func (c *Collector) Transitions() int64 {
	if c == nil {
		return 0
	}
	return c.transitions.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ChannelsActive   int64  `json:"channels_active"`
	ChannelsTotal    int64  `json:"channels_total"`
	BytesLeftToRight int64  `json:"bytes_left_to_right"`
	BytesRightToLeft int64  `json:"bytes_right_to_left"`
	DialAttempts     int64  `json:"dial_attempts"`
	DialFailures     int64  `json:"dial_failures"`
	Accepts          int64  `json:"accepts"`
	GateSkips        int64  `json:"gate_skips"`
	ErrorsTotal      int64  `json:"errors_total"`
	Transitions      int64  `json:"state_transitions"`
	LastChannel      string `json:"last_channel,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		ChannelsActive:   c.channelsActive.Load(),
		ChannelsTotal:    c.channelsTotal.Load(),
		BytesLeftToRight: c.bytesLR.Load(),
		BytesRightToLeft: c.bytesRL.Load(),
		DialAttempts:     c.dialAttempts.Load(),
		DialFailures:     c.dialFailures.Load(),
		Accepts:          c.acceptsTotal.Load(),
		GateSkips:        c.gateSkips.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
		Transitions:      c.transitions.Load(),
	}
	if !c.lastChannel.IsZero() {
		s.LastChannel = c.lastChannel.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
