package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial tcp 127.0.0.1:8545: connection refused")

func TestCircuitBreaker_BasicFunctionality(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 3})
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit breaker should start closed")
	assert.NoError(t, cb.Allow(), "Closed circuit should allow calls")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should remain closed after a success")
}

func TestCircuitBreaker_FailureThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		failures  int
		wantState State
	}{
		{name: "below threshold", threshold: 3, failures: 2, wantState: StateClosed},
		{name: "at threshold", threshold: 3, failures: 3, wantState: StateOpen},
		{name: "zero threshold trips on first failure", threshold: 0, failures: 1, wantState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := New(Thresholds{FailureThreshold: tt.threshold})
			for i := 0; i < tt.failures; i++ {
				cb.RecordFailure(errDial)
			}
			assert.Equal(t, tt.wantState, cb.GetState())
		})
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 2})

	cb.RecordFailure(errDial)
	cb.RecordSuccess()
	cb.RecordFailure(errDial)
	assert.Equal(t, StateClosed, cb.GetState(), "Failures must be consecutive to trip")

	cb.RecordFailure(errDial)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_OpenFailsFast(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 1}).WithResetDelay(time.Hour)
	cb.RecordFailure(errDial)

	err := cb.Allow()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Contains(t, err.Error(), "connection refused", "Error should carry the tripping failure")
	assert.Equal(t, errDial, cb.LastError())
}

func TestCircuitBreaker_HalfOpenState(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 1}).
		WithResetDelay(10 * time.Millisecond).
		WithSuccessThreshold(2)

	cb.RecordFailure(errDial)
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow(), "Probe should be allowed after the reset delay")
	assert.Equal(t, StateHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.GetState(), "One success is below the success threshold")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState(), "Circuit should close after enough successful probes")
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 5}).WithResetDelay(10 * time.Millisecond)
	for i := 0; i < 5; i++ {
		cb.RecordFailure(errDial)
	}
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.RecordFailure(errDial)
	assert.Equal(t, StateOpen, cb.GetState(), "A failed probe re-opens the circuit immediately")
	assert.ErrorIs(t, cb.Allow(), ErrOpen)
}

func TestCircuitBreaker_HalfOpenAdmitsOneCaller(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 1}).WithResetDelay(10 * time.Millisecond)
	cb.RecordFailure(errDial)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Allow(), "First caller becomes the probe")
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Allow(), ErrOpen, "Concurrent callers must not reach a recovering endpoint")
	}

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Allow())
	assert.NoError(t, cb.Allow(), "A closed circuit admits everyone")
}

func TestCircuitBreaker_HalfOpenConcurrentCallers(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 1}).WithResetDelay(10 * time.Millisecond)
	cb.RecordFailure(errDial)
	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}

func TestCircuitBreaker_ReleaseTrial(t *testing.T) {
	cb := New(Thresholds{FailureThreshold: 1}).WithResetDelay(10 * time.Millisecond)
	cb.RecordFailure(errDial)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Allow())
	require.ErrorIs(t, cb.Allow(), ErrOpen)

	cb.ReleaseTrial()
	assert.Equal(t, StateHalfOpen, cb.GetState(), "Releasing a probe does not change state")
	assert.NoError(t, cb.Allow(), "A released probe slot is handed to the next caller")
}

func TestCircuitBreaker_Callbacks(t *testing.T) {
	var mu sync.Mutex
	var states []State
	tripped := make(chan string, 1)

	cb := New(Thresholds{FailureThreshold: 1}).
		WithResetDelay(10 * time.Millisecond).
		WithStateCallback(func(s State) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s)
		}).
		WithTripCallback(func(reason string) {
			tripped <- reason
		})

	cb.RecordFailure(errDial)
	select {
	case reason := <-tripped:
		assert.Contains(t, reason, "consecutive failures")
	case <-time.After(time.Second):
		t.Fatal("Trip callback was not invoked")
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, states)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "state(7)", State(7).String())
}
