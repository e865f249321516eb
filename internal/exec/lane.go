package exec

import "sync"

// portLane is a single port's strictly-FIFO, single-consumer execution
// queue, plus the hold state currently latched on that port's device.
// Grounded on the teacher's pty.Hub: a small mutex-guarded buffer woken
// by a signal channel rather than a channel of jobs directly, which is
// what lets push() drop the oldest entry on overflow instead of blocking
// or dropping the newest the way an unbuffered/buffered channel send
// would.
type portLane struct {
	port int

	mu       sync.Mutex
	queue    []*job
	maxDepth int

	held                map[string]bool
	heldOwner           string
	heldArmedForRelease bool

	executing bool

	wake chan struct{}
}

func newPortLane(port, maxDepth int) *portLane {
	return &portLane{
		port:     port,
		maxDepth: maxDepth,
		held:     make(map[string]bool),
		wake:     make(chan struct{}, 1),
	}
}

// push enqueues j, returning the dropped job if the lane was already at
// capacity (oldest-drop per spec.md §4.6's failure semantics).
func (l *portLane) push(j *job) *job {
	l.mu.Lock()
	var dropped *job
	if len(l.queue) >= l.maxDepth {
		dropped = l.queue[0]
		l.queue = l.queue[1:]
	}
	l.queue = append(l.queue, j)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return dropped
}

func (l *portLane) pop() (*job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	j := l.queue[0]
	l.queue = l.queue[1:]
	return j, true
}

// idle reports whether the lane has nothing queued and no job executing.
// A job that has been popped but whose processing has not yet begun
// counts as idle for that instant; callers bound their wait with a
// timeout regardless.
func (l *portLane) idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) == 0 && !l.executing
}

func (l *portLane) setExecuting(v bool) {
	l.mu.Lock()
	l.executing = v
	l.mu.Unlock()
}
