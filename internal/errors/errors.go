// Package errors provides domain-specific error types for simple-tunnel.
//
// These types carry structured context (operation, address, retryability)
// that lets the topology controller decide whether a failure is retried,
// ends the current channel, or terminates the process.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotTCP = errors.New("connection is not TCP")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "setsockopt", "write", "read", "peek"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ListenerFault is an unrecoverable failure to bind or accept on a
// listening socket.  It terminates the process.
type ListenerFault struct {
	Op   string // "listen" or "accept"
	Addr string
	Err  error
}

func (e *ListenerFault) Error() string {
	return fmt.Sprintf("listener %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ListenerFault) Unwrap() error { return e.Err }

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// Fatal creates a ListenerFault.
func Fatal(op, addr string, err error) *ListenerFault {
	return &ListenerFault{Op: op, Addr: addr, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	var lf *ListenerFault
	return errors.As(err, &lf)
}

// IsOptionFailure reports whether err came from setting a socket option
// on a connection that was otherwise established.
func IsOptionFailure(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Op == "setsockopt"
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.  Dial
// failures such as refused, unreachable and timeout count as
// retryable; anything else is left to the caller.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Timeout()
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.IsNotFound //nolint:staticcheck
	}
	return false
}
