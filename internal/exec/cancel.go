package exec

import (
	"sync"

	"github.com/google/uuid"
)

// CancelToken is a one-shot cooperative cancellation flag, polled by the
// executor between subsequences and during a chord's hold sleep. Its ID
// correlates one CarryOut call across executor logs and the monitor
// telemetry stream.
type CancelToken struct {
	ID uuid.UUID

	mu        sync.Mutex
	done      chan struct{}
	cancelled bool
}

// NewCancelToken creates a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{ID: uuid.New(), done: make(chan struct{})}
}

// Cancel flips the token. Safe to call more than once or concurrently.
func (c *CancelToken) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cancelled {
		c.cancelled = true
		close(c.done)
	}
}

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when Cancel is called, for use in select.
func (c *CancelToken) Done() <-chan struct{} {
	return c.done
}
