// Package chatloop implements the message queue / tick loop (C7) from
// spec.md §4.7: a single cooperative owner goroutine that drains the
// outbound chat queue at a cooldown and ticks registered periodic
// routines, grounded on the teacher's pty.Hub event loop.
package chatloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sender is the narrow outbound half of the chat-transport collaborator
// (spec.md §6); the concrete transport.Client satisfies this structurally.
type Sender interface {
	SendMessage(channel, text string) error
}

// Routine is a periodic callback ticked once per loop iteration. Handles
// are returned at registration instead of doing reflection-based lookup
// (spec.md §9's design note on replacing FindRoutine<T>).
type Routine func(now time.Time)

// RoutineHandle identifies a registered Routine for later unregistration.
type RoutineHandle int

// Config tunes the loop's timing.
type Config struct {
	TickInterval     time.Duration
	MinSleepTime     time.Duration
	MaxSleepTime     time.Duration
	MessageCooldown  time.Duration
	MaxOutboundQueue int
	BotMessageLimit  int
}

func (c Config) clampedTick() time.Duration {
	interval := c.TickInterval
	if interval < c.MinSleepTime {
		interval = c.MinSleepTime
	}
	if c.MaxSleepTime > 0 && interval > c.MaxSleepTime {
		interval = c.MaxSleepTime
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return interval
}

// Loop is the single owner thread for outbound draining and routine
// ticking. Enqueue is safe from any goroutine; everything else runs only
// on the loop's own goroutine once Start is called.
type Loop struct {
	cfg       Config
	transport Sender
	outbound  *outboundQueue
	onDrop    func(channel, text string)

	mu         sync.Mutex
	routines   map[RoutineHandle]Routine
	nextHandle RoutineHandle

	// cooldown mirrors cfg.MessageCooldown but is live-reloadable (see
	// SetMessageCooldown) without disturbing the rest of cfg, which is
	// set once at construction and never touched concurrently.
	cooldown atomic.Int64

	lastSend time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Loop. onDrop (may be nil) is called whenever the outbound
// queue overflows and a message is discarded.
func New(cfg Config, transport Sender, onDrop func(channel, text string)) *Loop {
	l := &Loop{
		cfg:       cfg,
		transport: transport,
		outbound:  newOutboundQueue(cfg.MaxOutboundQueue),
		onDrop:    onDrop,
		routines:  make(map[RoutineHandle]Routine),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	l.cooldown.Store(int64(cfg.MessageCooldown))
	return l
}

// SetMessageCooldown live-updates the outbound send cooldown, e.g. from
// a config.Watcher hot-reload callback. Safe to call from any goroutine.
func (l *Loop) SetMessageCooldown(d time.Duration) {
	l.cooldown.Store(int64(d))
}

// Enqueue splits text at BotMessageLimit and queues each chunk for
// channel, preserving enqueue order globally (spec.md §5).
func (l *Loop) Enqueue(channel, text string) {
	for _, chunk := range SplitMessage(text, l.cfg.BotMessageLimit) {
		if dropped, ok := l.outbound.push(outboundMsg{channel: channel, text: chunk}); ok && l.onDrop != nil {
			l.onDrop(dropped.channel, dropped.text)
		}
	}
}

// RegisterRoutine adds fn to the set ticked every iteration, returning a
// handle for later Unregister.
func (l *Loop) RegisterRoutine(fn Routine) RoutineHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.nextHandle
	l.nextHandle++
	l.routines[h] = fn
	return h
}

// UnregisterRoutine removes a previously registered routine.
func (l *Loop) UnregisterRoutine(h RoutineHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.routines, h)
}

// Start runs the tick loop on a new goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop signals the loop to exit and waits for it to do so.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) run() {
	defer close(l.doneCh)
	tick := l.cfg.clampedTick()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case now := <-ticker.C:
			l.drainOne(now)
			l.tickRoutines(now)
		}
	}
}

func (l *Loop) drainOne(now time.Time) {
	if l.outbound.len() == 0 {
		return
	}
	cooldown := time.Duration(l.cooldown.Load())
	if !l.lastSend.IsZero() && now.Sub(l.lastSend) < cooldown {
		return
	}
	msg, ok := l.outbound.pop()
	if !ok {
		return
	}
	if l.transport != nil {
		l.transport.SendMessage(msg.channel, msg.text)
	}
	l.lastSend = now
}

func (l *Loop) tickRoutines(now time.Time) {
	l.mu.Lock()
	snapshot := make([]Routine, 0, len(l.routines))
	for _, r := range l.routines {
		snapshot = append(snapshot, r)
	}
	l.mu.Unlock()

	for _, r := range snapshot {
		r(now)
	}
}
