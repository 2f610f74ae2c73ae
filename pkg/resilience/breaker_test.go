package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errStore = errors.New("store down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(maxFailures int, timeout time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(&BreakerConfig{
		Name:        "test",
		MaxFailures: maxFailures,
		Timeout:     timeout,
	})
	b.now = clock.Now
	return b, clock
}

func fail(context.Context) error { return errStore }
func succeed(context.Context) error { return nil }

func TestBreaker_ClosedState(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	if b.State() != StateClosed {
		t.Fatalf("expected state closed, got %s", b.State())
	}

	got, err := Do(context.Background(), b, func(context.Context) (string, error) {
		return "success", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "success" {
		t.Errorf("expected 'success', got %q", got)
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Execute(context.Background(), fail); !errors.Is(err, errStore) {
			t.Fatalf("call %d: expected store error, got %v", i, err)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected state open, got %s", b.State())
	}

	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("fn must not run while the circuit is open")
	}
	if !IsOpen(err) {
		t.Errorf("expected BreakerOpenError, got %T", err)
	}
	if b.Rejected() != 1 {
		t.Errorf("expected 1 rejected call, got %d", b.Rejected())
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), succeed)

	if b.Failures() != 0 {
		t.Errorf("expected failures reset, got %d", b.Failures())
	}
	_ = b.Execute(context.Background(), fail)
	if b.State() != StateClosed {
		t.Errorf("expected closed after non-consecutive failures, got %s", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)

	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	clock.Advance(time.Minute)

	if err := b.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("probe call should pass: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)

	_ = b.Execute(context.Background(), fail)
	clock.Advance(2 * time.Minute)

	if err := b.Execute(context.Background(), fail); !errors.Is(err, errStore) {
		t.Fatalf("expected probe to reach the store, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreaker_CanceledContextNotCounted(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	err := b.Execute(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed || b.Failures() != 0 {
		t.Errorf("cancellation must not trip the breaker: state=%s failures=%d", b.State(), b.Failures())
	}

	if err := b.Execute(ctx, succeed); !errors.Is(err, context.Canceled) {
		t.Errorf("expected already-canceled context to short-circuit, got %v", err)
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string

	b, clock := newTestBreaker(1, time.Minute)
	b.config.OnStateChange = func(name string, from, to State) {
		mu.Lock()
		transitions = append(transitions, from.String()+"->"+to.String())
		mu.Unlock()
	}

	_ = b.Execute(context.Background(), fail)
	clock.Advance(time.Minute)
	_ = b.Execute(context.Background(), succeed)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Hour)
	_ = b.Execute(context.Background(), fail)
	b.Reset()

	if b.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", b.State())
	}
	if err := b.Execute(context.Background(), succeed); err != nil {
		t.Errorf("unexpected error after reset: %v", err)
	}
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(nil)
	if b.config.MaxFailures != 5 || b.config.Timeout != 30*time.Second || b.config.HalfOpenMaxCalls != 1 {
		t.Errorf("unexpected defaults: %+v", b.config)
	}
}

func TestBreakerOpenError_RetryAfter(t *testing.T) {
	past := &BreakerOpenError{Name: "x", RetryAt: time.Now().Add(-time.Second)}
	if past.RetryAfter() != 0 {
		t.Errorf("expected 0 for past retry time, got %s", past.RetryAfter())
	}
	future := &BreakerOpenError{Name: "x", RetryAt: time.Now().Add(time.Hour)}
	if future.RetryAfter() <= 0 {
		t.Error("expected positive retry-after")
	}
}
