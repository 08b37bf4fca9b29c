package retry

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestBackoff_SuccessAfterRetries(t *testing.T) {
	b := &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  10,
	}
	calls := 0

	err := b.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_ImmediateSuccess(t *testing.T) {
	b := Fixed(time.Second)

	err := b.Do(context.Background(), func(_ int) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackoff_PermanentError(t *testing.T) {
	b := Fixed(time.Second)
	calls := 0

	err := b.Do(context.Background(), func(_ int) error {
		calls++
		return Permanent(fmt.Errorf("fatal"))
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "fatal" {
		t.Errorf("expected 'fatal', got %q", err.Error())
	}
	if calls != 1 {
		t.Errorf("permanent error should stop after 1 call, got %d", calls)
	}
}

func TestBackoff_MaxAttempts(t *testing.T) {
	b := &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  3,
	}
	calls := 0

	err := b.Do(context.Background(), func(_ int) error {
		calls++
		return fmt.Errorf("always fails")
	})

	if err == nil {
		t.Fatal("expected error after max attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_ContextCancelled(t *testing.T) {
	b := &Backoff{
		InitialDelay: 5 * time.Second,
		MaxAttempts:  100,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Do(ctx, func(_ int) error {
		return fmt.Errorf("fail")
	})

	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", Permanent(fmt.Errorf("x")), true},
		{"not permanent", fmt.Errorf("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestBackoff_ZeroDelay verifies a zero interval retries without
// waiting.
func TestBackoff_ZeroDelay(t *testing.T) {
	b := &Backoff{MaxAttempts: 5}
	var waits []time.Duration
	b.OnRetry = func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) }
	calls := 0

	start := time.Now()
	_ = b.Do(context.Background(), func(_ int) error {
		calls++
		return fmt.Errorf("fail")
	})
	elapsed := time.Since(start)

	if calls != 5 {
		t.Errorf("expected 5 calls, got %d", calls)
	}
	for _, w := range waits {
		if w != 0 {
			t.Errorf("wait = %v, want 0", w)
		}
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("zero delay took %v", elapsed)
	}
}

// TestFixed_Zero verifies Fixed(0) keeps retrying back to back.
func TestFixed_Zero(t *testing.T) {
	b := Fixed(0)
	calls := 0
	err := b.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 50 {
			return fmt.Errorf("refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 50 {
		t.Errorf("calls = %d, want 50", calls)
	}
}

// TestFixed_RetriesAtInterval drives a mock clock: N failures must
// produce exactly N retry callbacks and N waits of the interval.
func TestFixed_RetriesAtInterval(t *testing.T) {
	const (
		interval = 10 * time.Second
		failures = 4
	)
	mock := clock.NewMock()
	start := mock.Now()

	var retries atomic.Int32
	b := Fixed(interval)
	b.Clock = mock
	b.OnRetry = func(_ int, _ error, wait time.Duration) {
		if wait != interval {
			t.Errorf("wait = %v, want %v", wait, interval)
		}
		retries.Add(1)
	}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- b.Do(context.Background(), func(attempt int) error {
			calls++
			if attempt <= failures {
				return fmt.Errorf("connection refused")
			}
			return nil
		})
	}()

	advanced := int32(0)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := retries.Load(); got != failures {
				t.Errorf("retries = %d, want %d", got, failures)
			}
			if calls != failures+1 {
				t.Errorf("calls = %d, want %d", calls, failures+1)
			}
			if elapsed := mock.Now().Sub(start); elapsed != failures*interval {
				t.Errorf("slept %v, want %v", elapsed, failures*interval)
			}
			return
		case <-deadline:
			t.Fatal("backoff did not finish")
		default:
		}
		if retries.Load() > advanced {
			advanced++
			mock.Add(interval)
			continue
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFixed_Unlimited(t *testing.T) {
	b := Fixed(time.Millisecond)
	if b.MaxAttempts != 0 {
		t.Errorf("MaxAttempts = %d, want unlimited", b.MaxAttempts)
	}
	if b.InitialDelay != b.MaxDelay || b.Multiplier != 1 {
		t.Errorf("policy is not fixed: %+v", b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := b.Do(ctx, func(_ int) error {
		calls++
		return fmt.Errorf("unreachable")
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if calls < 2 {
		t.Errorf("expected many attempts before cancellation, got %d", calls)
	}
}

func TestWithHook_CopiesPolicy(t *testing.T) {
	base := Fixed(time.Millisecond)
	calls := 0
	hooked := base.WithHook(func(int, error, time.Duration) { calls++ })

	if base.OnRetry != nil {
		t.Fatal("WithHook must not modify the receiver")
	}
	if hooked.InitialDelay != base.InitialDelay || hooked.Multiplier != base.Multiplier {
		t.Errorf("policy not copied: %+v", hooked)
	}

	_ = hooked.Do(context.Background(), func(attempt int) error {
		if attempt < 3 {
			return fmt.Errorf("fail")
		}
		return nil
	})
	if calls != 2 {
		t.Errorf("hook calls = %d, want 2", calls)
	}
}
