// Package circuitbreaker guards the served APR figures against implausible values and sudden
// jumps between consecutive computations.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/model"
)

// ErrOpen is returned by Check while the breaker is open.
var ErrOpen = errors.New("circuit breaker open: system protection engaged")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, results are not accepted
	StateHalfOpen              // Testing if the source has recovered
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker checks each computed result against Thresholds and the previous accepted
// result. A violation opens the circuit until resetDelay has elapsed.
type CircuitBreaker struct {
	thresholds Thresholds

	state    State
	lastTrip time.Time
	reason   string

	// Duration before auto-reset attempt
	resetDelay time.Duration

	mu sync.RWMutex

	// Accepted results, oldest first
	history []model.Result

	// Count of consecutive accepted results in HalfOpen state
	successCount int

	// Number of accepted results required to close the circuit
	successThreshold int

	onTripCallback func(reason string, result model.Result)
}

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// Maximum allowed APR as a fraction (e.g., 10.0 for 1000%)
	MaxAPR float64 `json:"max_apr"`

	// Maximum relative change of the discounted APR between consecutive results (e.g., 0.5 for 50%)
	MaxAPRChange float64 `json:"max_apr_change"`

	// Maximum number of pools a result may have skipped. Negative disables the check.
	MaxSkippedPools int `json:"max_skipped_pools"`
}

// Status is a snapshot of the breaker for reporting.
type Status struct {
	State    string    `json:"state"`
	Reason   string    `json:"reason,omitempty"`
	LastTrip time.Time `json:"last_trip,omitempty"`
	History  int       `json:"history"`
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of accepted results needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string, result model.Result)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Check evaluates result against the thresholds and the last accepted result.
// If the circuit is open, it rejects the result with ErrOpen.
// If the result violates a threshold, it trips the circuit and returns an error.
func (cb *CircuitBreaker) Check(result model.Result) error {
	cb.mu.RLock()
	state := cb.state
	lastTripTime := cb.lastTrip
	cb.mu.RUnlock()

	if state == StateOpen {
		if time.Since(lastTripTime) > cb.resetDelay {
			cb.transitionToHalfOpen()
		} else {
			return ErrOpen
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if reason := cb.violation(result); reason != "" {
		cb.trip(reason, result)
		return errors.New(reason)
	}

	logrus.WithField("block", result.Block).Debug("Circuit breaker checks passed")

	cb.addToHistory(result)

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			cb.reason = ""
			logrus.Info("Circuit breaker closed: system has recovered")
		}
	}

	return nil
}

// violation returns why result must be rejected, or "" when it is acceptable.
// It must be called with cb.mu held.
func (cb *CircuitBreaker) violation(r model.Result) string {
	for _, apr := range []float64{r.APRNominal, r.APRDiscounted} {
		if math.IsNaN(apr) || math.IsInf(apr, 0) {
			return "APR is not a finite number"
		}
		if cb.thresholds.MaxAPR > 0 && apr > cb.thresholds.MaxAPR {
			return fmt.Sprintf("APR exceeds maximum threshold: %f > %f", apr, cb.thresholds.MaxAPR)
		}
	}

	if cb.thresholds.MaxSkippedPools >= 0 && len(r.Skipped) > cb.thresholds.MaxSkippedPools {
		return fmt.Sprintf("too many skipped pools: %d (threshold: %d)", len(r.Skipped), cb.thresholds.MaxSkippedPools)
	}

	// The first result after a trip sets a new baseline and is not compared with older history.
	newBaseline := cb.state == StateHalfOpen && cb.successCount == 0

	if len(cb.history) > 0 && cb.thresholds.MaxAPRChange > 0 && !newBaseline {
		last := cb.history[len(cb.history)-1]
		// Tiny previous values make the ratio meaningless.
		if last.APRDiscounted > 1e-6 {
			change := math.Abs(r.APRDiscounted-last.APRDiscounted) / last.APRDiscounted
			if change > cb.thresholds.MaxAPRChange {
				return fmt.Sprintf("APR change too drastic: %.2f%% (threshold: %.2f%%)",
					change*100, cb.thresholds.MaxAPRChange*100)
			}
		}
	}

	return ""
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Status reports the state, the last trip reason and the history size.
func (cb *CircuitBreaker) Status() Status {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Status{
		State:    cb.state.String(),
		Reason:   cb.reason,
		LastTrip: cb.lastTrip,
		History:  len(cb.history),
	}
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	cb.reason = ""
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGood returns the most recent accepted result.
func (cb *CircuitBreaker) LastGood() (model.Result, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if len(cb.history) == 0 {
		return model.Result{}, false
	}
	return cb.history[len(cb.history)-1], true
}

func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing system recovery")
	}
}

// trip must be called with cb.mu held.
func (cb *CircuitBreaker) trip(reason string, result model.Result) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	cb.reason = reason
	logrus.WithFields(logrus.Fields{
		"block":  result.Block,
		"reason": reason,
	}).Warn("Circuit breaker tripped")

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason, result)
	}
}

func (cb *CircuitBreaker) addToHistory(result model.Result) {
	cb.history = append(cb.history, result)

	const maxHistorySize = 100
	if len(cb.history) > maxHistorySize {
		cb.history = cb.history[len(cb.history)-maxHistorySize:]
	}
}
