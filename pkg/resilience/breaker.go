// Package resilience provides a circuit breaker for calls to the data store.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows calls through.
	StateClosed State = iota

	// StateOpen rejects every call until the timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in errors and logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// HalfOpenMaxCalls is the number of probe calls allowed while half-open.
	HalfOpenMaxCalls int

	// OnStateChange is called synchronously, outside the lock, on every transition.
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerConfig returns the default configuration.
func DefaultBreakerConfig(name string) *BreakerConfig {
	return &BreakerConfig{
		Name:             name,
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	config *BreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	openedAt      time.Time
	halfOpenCalls int

	rejected int64
}

// NewBreaker creates a circuit breaker. Zero-valued config fields take defaults.
func NewBreaker(config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig("default")
	}
	def := DefaultBreakerConfig(config.Name)
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &Breaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn under breaker protection. A call rejected by an open
// circuit returns *BreakerOpenError without invoking fn. Cancellation of the
// caller's context is not counted as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	b.afterCall(ctx, err)
	return err
}

// Do is Execute for functions returning a value.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()

	var from, to State
	changed := false

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			b.rejected++
			err := &BreakerOpenError{
				Name:     b.config.Name,
				RetryAt:  b.openedAt.Add(b.config.Timeout),
				Failures: b.failures,
			}
			b.mu.Unlock()
			return err
		}
		from, to, changed = b.transition(StateHalfOpen)
		b.halfOpenCalls = 1
	case StateHalfOpen:
		if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
			b.rejected++
			err := &BreakerOpenError{
				Name:     b.config.Name,
				RetryAt:  b.now().Add(time.Second),
				Failures: b.failures,
			}
			b.mu.Unlock()
			return err
		}
		b.halfOpenCalls++
	}

	b.mu.Unlock()
	if changed {
		b.notify(from, to)
	}
	return nil
}

func (b *Breaker) afterCall(ctx context.Context, err error) {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// The caller gave up; release the probe slot without judging the store.
		b.mu.Lock()
		if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
			b.halfOpenCalls--
		}
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	var from, to State
	changed := false
	if err == nil {
		from, to, changed = b.recordSuccess()
	} else {
		from, to, changed = b.recordFailure()
	}
	b.mu.Unlock()

	if changed {
		b.notify(from, to)
	}
}

func (b *Breaker) recordSuccess() (State, State, bool) {
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.HalfOpenMaxCalls {
			b.failures = 0
			return b.transition(StateClosed)
		}
	}
	return b.state, b.state, false
}

func (b *Breaker) recordFailure() (State, State, bool) {
	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.config.MaxFailures {
			b.openedAt = b.now()
			return b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.openedAt = b.now()
		return b.transition(StateOpen)
	}
	return b.state, b.state, false
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) (State, State, bool) {
	from := b.state
	b.state = to
	b.successes = 0
	b.halfOpenCalls = 0
	return from, to, from != to
}

func (b *Breaker) notify(from, to State) {
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Rejected returns how many calls the breaker has refused.
func (b *Breaker) Rejected() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
}

// BreakerOpenError is returned when the circuit rejects a call.
type BreakerOpenError struct {
	Name     string
	RetryAt  time.Time
	Failures int
}

// Error implements the error interface.
func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open (failures=%d, retry at %s)",
		e.Name, e.Failures, e.RetryAt.Format(time.RFC3339))
}

// RetryAfter returns the duration until a retry may succeed.
func (e *BreakerOpenError) RetryAfter() time.Duration {
	d := time.Until(e.RetryAt)
	if d < 0 {
		return 0
	}
	return d
}

// IsOpen reports whether err was caused by an open circuit.
func IsOpen(err error) bool {
	var boe *BreakerOpenError
	return errors.As(err, &boe)
}
