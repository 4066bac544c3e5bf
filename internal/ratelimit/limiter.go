// Package ratelimit implements a process-local fixed-window request counter.
//
// A fixed window keeps one counter per key and resets it at window
// boundaries, so memory and update cost are O(1) per key. The trade-off is
// that a burst straddling a boundary can pass up to 2x the limit; acceptable
// for abuse prevention, not for hard quota enforcement. Counters live in
// process memory only: running N instances of the service multiplies the
// effective limit by N.
package ratelimit

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// Result is the outcome of a single Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

const (
	shardCount        = 32
	defaultSweepEvery = time.Minute
)

type entry struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Limiter tracks fixed-window counters keyed by arbitrary identifiers
// (e.g. "agent:<id>" or "passive_credit:<owner>:<app>"). The key space is
// sharded to bound lock contention under high cardinality. Safe for
// concurrent use.
type Limiter struct {
	shards     [shardCount]shard
	sweepEvery time.Duration
	lastSweep  atomic.Int64 // unix nanos of the last sweep

	now func() time.Time // overridable in tests
}

// New returns a Limiter that sweeps expired entries at most once per minute.
func New() *Limiter {
	l := &Limiter{sweepEvery: defaultSweepEvery, now: time.Now}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*entry)
	}
	return l
}

// Check records one call for identifier and decides whether it is within
// limit calls per window. When disallowed, Result.ResetAt tells the caller
// when the window reopens; the stored count is not mutated.
//
// limit and window are call-site constants; non-positive values are
// programmer errors and panic.
func (l *Limiter) Check(identifier string, limit int, window time.Duration) Result {
	if limit <= 0 {
		panic(fmt.Sprintf("ratelimit: non-positive limit %d for %q", limit, identifier))
	}
	if window <= 0 {
		panic(fmt.Sprintf("ratelimit: non-positive window %s for %q", window, identifier))
	}

	l.maybeSweep()

	now := l.now()
	s := l.shardFor(identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identifier]
	if !ok || now.After(e.resetAt) {
		// new window
		resetAt := now.Add(window)
		s.entries[identifier] = &entry{count: 1, resetAt: resetAt}
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: resetAt}
	}

	if e.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}

	e.count++
	return Result{Allowed: true, Remaining: limit - e.count, ResetAt: e.resetAt}
}

// Size reports the number of tracked keys, expired entries included until the
// next sweep.
func (l *Limiter) Size() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

func (l *Limiter) shardFor(identifier string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return &l.shards[h.Sum32()%shardCount]
}

// maybeSweep evicts expired entries, at most once per sweep interval. The CAS
// elects a single sweeper; shards are locked one at a time, so concurrent
// Check calls on other shards proceed and in-flight increments are never
// lost.
func (l *Limiter) maybeSweep() {
	now := l.now()
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(l.sweepEvery) {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for key, e := range s.entries {
			if now.After(e.resetAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}
