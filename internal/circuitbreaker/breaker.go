// Package circuitbreaker protects a contract-call transport from hammering an
// RPC endpoint that keeps failing. It belongs to the transport: the aggregation
// core never retries on its own.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls fail fast
	StateHalfOpen              // Probing whether the endpoint recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrOpen is returned by Allow while the circuit is open
var ErrOpen = errors.New("circuit breaker open")

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// Consecutive failed calls that open the circuit
	FailureThreshold int `json:"failure_threshold"`
}

// CircuitBreaker counts consecutive transport failures and, once the threshold
// is reached, rejects calls until the reset delay has passed.
type CircuitBreaker struct {
	// Configuration thresholds for triggering the circuit breaker
	thresholds Thresholds

	// Current state of the circuit breaker (Closed, Open, HalfOpen)
	state State

	// Timestamp of the last circuit trip
	lastTrip time.Time

	// Duration before a half-open probe is allowed
	resetDelay time.Duration

	// Mutex for thread safety
	mu sync.RWMutex

	// Consecutive failures while closed
	failures int

	// Error that caused the last trip
	lastErr error

	// Count of consecutive successful operations in HalfOpen state
	successCount int

	// A half-open probe has been admitted and has not reported back
	trialInFlight bool

	// Number of successful operations required to close circuit
	successThreshold int

	// Event callbacks for monitoring/alerting
	onTripCallback   func(reason string)
	onChangeCallback func(State)
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	if t.FailureThreshold <= 0 {
		t.FailureThreshold = 1
	}
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       30 * time.Second,
		successThreshold: 1,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful operations needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// WithStateCallback sets a callback invoked synchronously on every state change
func (cb *CircuitBreaker) WithStateCallback(callback func(State)) *CircuitBreaker {
	cb.onChangeCallback = callback
	return cb
}

// Allow reports whether a call may proceed. An open circuit whose reset delay
// has elapsed moves to half-open and lets one probe through; further calls are
// rejected until that probe is recorded or released.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.trialInFlight {
			return fmt.Errorf("%w: probe in flight", ErrOpen)
		}
		cb.trialInFlight = true
		return nil
	}
	if time.Since(cb.lastTrip) < cb.resetDelay {
		return fmt.Errorf("%w: last failure: %v", ErrOpen, cb.lastErr)
	}
	cb.setState(StateHalfOpen)
	cb.successCount = 0
	cb.trialInFlight = true
	logrus.Info("Circuit breaker half-open: probing endpoint")
	return nil
}

// ReleaseTrial gives back an admitted half-open probe whose call ended without
// saying anything about the endpoint, such as a cancelled request
func (cb *CircuitBreaker) ReleaseTrial() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialInFlight = false
}

// RecordSuccess notes a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.trialInFlight = false
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.setState(StateClosed)
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: endpoint has recovered")
		}
	}
}

// RecordFailure notes a failed call and trips the circuit when the threshold is
// reached. Any failure during a half-open probe re-opens it immediately.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.trip(fmt.Sprintf("probe failed: %v", err), err)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.thresholds.FailureThreshold {
			cb.trip(fmt.Sprintf("%d consecutive failures, last: %v", cb.failures, err), err)
		}
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// LastError returns the error that last tripped the circuit
func (cb *CircuitBreaker) LastError() error {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.lastErr
}

// trip sets the circuit breaker to open state with the current time
func (cb *CircuitBreaker) trip(reason string, err error) {
	cb.setState(StateOpen)
	cb.lastTrip = time.Now()
	cb.lastErr = err
	cb.failures = 0
	cb.trialInFlight = false
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason)
	}
}

func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	if cb.onChangeCallback != nil {
		cb.onChangeCallback(s)
	}
}
