package proxy

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a small circuit breaker guarding the trading upstream. After
// failThreshold consecutive failures it opens for openFor; one probe request
// is then let through at a time until a success closes it again.
type Breaker struct {
	mu               sync.Mutex
	st               breakerState
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
}

func NewBreaker(threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}
	return &Breaker{failThreshold: threshold, openFor: openFor}
}

// Allow reports whether a request may go out, transitioning open → half-open
// once the cool-off has elapsed. The caller must report the outcome via
// OnSuccess / OnFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case stateClosed:
		return true
	case stateOpen:
		if time.Now().After(b.nextTryAt) && !b.probeInFlight {
			b.st = stateHalfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case stateHalfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = stateClosed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	if b.st == stateHalfOpen {
		b.st = stateOpen
		b.nextTryAt = time.Now().Add(b.openFor)
		b.probeInFlight = false
		b.mu.Unlock()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = stateOpen
		b.nextTryAt = time.Now().Add(b.openFor)
	}

	b.mu.Unlock()
}
