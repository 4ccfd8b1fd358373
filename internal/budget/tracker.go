// Package budget tracks the remaining remote API call quota for the current window.
package budget

import (
	"sync"
	"time"
)

// Tracker is the single source of truth for how many remote calls the current
// quota window still allows. It never blocks; callers stop issuing work when
// Remaining reaches zero and defer the rest to the next cycle.
type Tracker struct {
	mu        sync.Mutex
	limit     int
	remaining int
	resetAt   time.Time
}

// New creates a tracker with the given call allowance for a window that
// resets at resetAt. The allowance also caps what a window rollover can
// restore; the remote may allow more, we will not use it.
func New(limit int, resetAt time.Time) *Tracker {
	if limit < 0 {
		limit = 0
	}
	return &Tracker{
		limit:     limit,
		remaining: limit,
		resetAt:   resetAt,
	}
}

// Reserve withholds the largest m <= n obtainable without exceeding the
// remaining quota and returns m. The grant is deducted immediately so
// parallel workers cannot collectively over-spend the window; a reservation
// is never returned, since quota is consumed on every call attempt anyway.
func (t *Tracker) Reserve(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n < 0 {
		return 0
	}
	if n > t.remaining {
		n = t.remaining
	}
	t.remaining -= n
	return n
}

// Consume records spend not covered by a reservation, such as the overrun of
// a cost-weighted call that cost more units than were reserved for it.
func (t *Tracker) Consume(k int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining -= k
	if t.remaining < 0 {
		t.remaining = 0
	}
}

// Remaining returns the calls left in the current window.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// WindowResetsAt returns when the current quota window rolls over.
func (t *Tracker) WindowResetsAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetAt
}

// ObserveWindow reconciles the tracker with quota state reported by the
// remote API. A later reset time means the window rolled over and the quota
// is reset to the reported value. Within the same window the reported value
// only ever lowers our belief: if the remote says less is left than we
// thought, that is what we have.
func (t *Tracker) ObserveWindow(remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}

	if resetAt.After(t.resetAt) {
		if remaining > t.limit {
			remaining = t.limit
		}
		t.remaining = remaining
		t.resetAt = resetAt
		return
	}

	if remaining < t.remaining {
		t.remaining = remaining
	}
}

// Exhaust drops the remaining quota to zero for this window. Used when the
// remote reports quota exhaustion outright.
func (t *Tracker) Exhaust() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = 0
}
