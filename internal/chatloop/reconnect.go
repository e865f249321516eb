package chatloop

import (
	"math/rand"
	"sync"
	"time"
)

// reconnectLadder is the fixed backoff schedule, grounded on the
// teacher's drivesync rate-limit backoff (level 0..4, durations
// 0/5s/10s/20s/60s).
var reconnectLadder = []time.Duration{0, 5 * time.Second, 10 * time.Second, 20 * time.Second, 60 * time.Second}

// ReconnectBackoff tracks a transport reconnect attempt's current
// backoff level and adds jitter so many simultaneous reconnects don't
// all retry on the same tick.
type ReconnectBackoff struct {
	mu    sync.Mutex
	level int
	next  time.Time
}

// Ready reports whether enough time has passed since the last failure
// to attempt a reconnect.
func (b *ReconnectBackoff) Ready(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !now.Before(b.next)
}

// Failure advances the backoff level (capped at the ladder's end) and
// schedules the next eligible attempt.
func (b *ReconnectBackoff) Failure(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.level < len(reconnectLadder)-1 {
		b.level++
	}
	base := reconnectLadder[b.level]
	jitter := time.Duration(rand.Int63n(int64(base/4 + 1)))
	delay := base + jitter
	b.next = now.Add(delay)
	return delay
}

// Success resets the backoff to its initial, immediate-retry state.
func (b *ReconnectBackoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = 0
	b.next = time.Time{}
}

// Reconnector is the narrow transport capability the reconnect routine
// drives: a way to attempt re-establishing the connection.
type Reconnector interface {
	Reconnect() error
}

// NewReconnectRoutine returns a Routine suitable for registration with a
// Loop: on every tick, if disconnected and the backoff window has
// elapsed, it attempts Reconnector.Reconnect and reports the outcome via
// onResult.
func NewReconnectRoutine(r Reconnector, disconnected func() bool, onResult func(err error)) (Routine, *ReconnectBackoff) {
	backoff := &ReconnectBackoff{}
	routine := func(now time.Time) {
		if !disconnected() || !backoff.Ready(now) {
			return
		}
		err := r.Reconnect()
		if err != nil {
			backoff.Failure(now)
		} else {
			backoff.Success()
		}
		if onResult != nil {
			onResult(err)
		}
	}
	return routine, backoff
}
