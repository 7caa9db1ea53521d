package policy

import (
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
)

// CircuitBreaker stops calls to a failing device after consecutive failures
// and lets a trial call through once the open timeout has passed.
type CircuitBreaker struct {
	enabled bool
	// failureThreshold is the number of consecutive failures before opening
	failureThreshold int
	// successThreshold is the number of half-open successes needed to close
	successThreshold int
	// timeout is how long the circuit stays open before turning half-open
	timeout time.Duration
	now     func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastStateChange time.Time
}

func NewCircuitBreaker(enabled bool, failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		enabled:          enabled,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
		state:            CircuitStateClosed,
		lastStateChange:  time.Now(),
	}
}

// NewCircuitBreakerFromConfig builds a breaker from the hardware section.
// A nil section or a zero failure threshold disables it.
func NewCircuitBreakerFromConfig(cfg *config.CircuitBreaker) (*CircuitBreaker, error) {
	if cfg == nil || cfg.FailureThreshold <= 0 {
		return NewCircuitBreaker(false, 0, 0, 0), nil
	}
	timeout, err := cfg.GetOpenTimeout()
	if err != nil {
		return nil, err
	}
	return NewCircuitBreaker(true, cfg.FailureThreshold, cfg.SuccessThreshold, timeout), nil
}

func (b *CircuitBreaker) Enabled() bool {
	return b.enabled
}

func (b *CircuitBreaker) Name() string {
	return "circuit_breaker"
}

// Allow reports whether a call may proceed.
func (b *CircuitBreaker) Allow() bool {
	if !b.enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state != CircuitStateOpen
}

func (b *CircuitBreaker) RecordSuccess() {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitStateHalfOpen:
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.setStateLocked(CircuitStateClosed)
			b.failureCount = 0
		}
	case CircuitStateClosed:
		b.failureCount = 0
	}
}

func (b *CircuitBreaker) RecordFailure() {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	switch b.state {
	case CircuitStateHalfOpen:
		// any failure while half-open reopens the circuit
		b.setStateLocked(CircuitStateOpen)
	case CircuitStateClosed:
		if b.failureCount >= b.failureThreshold {
			b.setStateLocked(CircuitStateOpen)
		}
	}
}

func (b *CircuitBreaker) State() CircuitState {
	if !b.enabled {
		return CircuitStateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

func (b *CircuitBreaker) advanceLocked() {
	if b.state == CircuitStateOpen && b.now().Sub(b.lastStateChange) >= b.timeout {
		b.setStateLocked(CircuitStateHalfOpen)
	}
}

func (b *CircuitBreaker) setStateLocked(s CircuitState) {
	b.state = s
	b.successCount = 0
	b.lastStateChange = b.now()
}
