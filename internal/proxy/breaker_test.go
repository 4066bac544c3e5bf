package proxy

import (
	"testing"
	"time"
)

func TestBreaker_OpensAndRecovers(t *testing.T) {
	t.Parallel()

	b := NewBreaker(2, 30*time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected allow in closed state")
	}
	b.OnFailure()
	b.OnFailure()
	if b.Allow() {
		t.Fatalf("expected breaker to be open after threshold failures")
	}

	time.Sleep(35 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected half-open probe after cool-off")
	}
	if b.Allow() {
		t.Fatalf("expected a single probe at a time")
	}
	b.OnSuccess()
	if !b.Allow() {
		t.Fatalf("expected breaker to close after probe success")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(1, 20*time.Millisecond)
	b.OnFailure()
	time.Sleep(25 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected probe after cool-off")
	}
	b.OnFailure()
	if b.Allow() {
		t.Fatalf("expected breaker to reopen after failed probe")
	}
}
