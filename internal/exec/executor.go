// Package exec implements the input scheduler/executor (C6) from spec.md
// §4.6: it drives a controllermgr.Manager's virtual devices from a
// validated model.InputSequence, one per-port FIFO lane at a time,
// grounded on the teacher's pty.Hub channel-driven event loop.
package exec

import (
	"fmt"
	"sync"
	"time"

	"github.com/flexer23/TRTwitchPlaysBot/internal/controllermgr"
	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
	"github.com/flexer23/TRTwitchPlaysBot/internal/vgamepad"
)

// Outcome is the terminal state of a CarryOut call.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	DeviceGone
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case DeviceGone:
		return "DeviceGone"
	case Dropped:
		return "Dropped"
	default:
		return "Unknown"
	}
}

// NotifyFunc delivers a user-visible diagnostic, wired by the caller to
// the outbound chat queue (C7). Never blocks the executor for long.
type NotifyFunc func(userID, message string)

// Config tunes the executor.
type Config struct {
	FrameMs       int
	MaxQueueDepth int // per-port lane depth; overflow drops the oldest queued job
}

// job is one submitted sequence waiting for, or running on, its port lane.
type job struct {
	userID      string
	seq         model.InputSequence
	defaultPort int
	cancel      *CancelToken
	resultCh    chan Outcome
}

// Executor owns one FIFO lane per controller port.
type Executor struct {
	mgr    *controllermgr.Manager
	cfg    Config
	notify NotifyFunc

	lanes []*portLane

	stopCh chan struct{}
	wg     sync.WaitGroup

	tokMu  sync.Mutex
	active map[*CancelToken]struct{}
}

// New builds an Executor over mgr. Call Start before submitting work.
func New(mgr *controllermgr.Manager, notify NotifyFunc, cfg Config) *Executor {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 16
	}
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Executor{
		mgr:    mgr,
		cfg:    cfg,
		notify: notify,
		stopCh: make(chan struct{}),
		active: make(map[*CancelToken]struct{}),
	}
}

// Start spawns one lane worker per acquired controller port. Must be
// called exactly once, after the manager has been Init'd.
func (e *Executor) Start() {
	count := e.mgr.Count()
	e.lanes = make([]*portLane, count)
	for p := 0; p < count; p++ {
		lane := newPortLane(p, e.cfg.MaxQueueDepth)
		e.lanes[p] = lane
		e.wg.Add(1)
		go e.laneWorker(lane)
	}
}

// CarryOut enqueues seq onto defaultPort's lane and returns a handle the
// caller can use to await or cancel it. The whole sequence is serialized
// on defaultPort's lane even if individual inputs carry an explicit &p
// override to a different port — only that input's press/release target
// the other device, the timeline ownership stays with defaultPort.
func (e *Executor) CarryOut(userID string, seq model.InputSequence, defaultPort int) (*CancelToken, <-chan Outcome, error) {
	if defaultPort < 0 || defaultPort >= len(e.lanes) {
		return nil, nil, fmt.Errorf("exec: default port %d out of range", defaultPort+1)
	}
	if e.mgr.IsDegraded(defaultPort) {
		return nil, nil, fmt.Errorf("exec: port %d degraded", defaultPort+1)
	}

	cancel := NewCancelToken()
	j := &job{
		userID:      userID,
		seq:         seq,
		defaultPort: defaultPort,
		cancel:      cancel,
		resultCh:    make(chan Outcome, 1),
	}

	e.tokMu.Lock()
	e.active[cancel] = struct{}{}
	e.tokMu.Unlock()

	if dropped := e.lanes[defaultPort].push(j); dropped != nil {
		dropped.resultCh <- Dropped
		e.forgetToken(dropped.cancel)
		e.notify(dropped.userID, "your queued input was dropped, the port's queue is full")
	}

	return cancel, j.resultCh, nil
}

func (e *Executor) forgetToken(c *CancelToken) {
	e.tokMu.Lock()
	delete(e.active, c)
	e.tokMu.Unlock()
}

// StopAll cancels every in-flight and queued sequence and waits (bounded
// by timeout) for every lane to finish releasing held state, matching
// spec.md §5's /stopall contract.
func (e *Executor) StopAll(timeout time.Duration) {
	e.tokMu.Lock()
	tokens := make([]*CancelToken, 0, len(e.active))
	for c := range e.active {
		tokens = append(tokens, c)
	}
	e.tokMu.Unlock()

	for _, c := range tokens {
		c.Cancel()
	}

	deadline := time.Now().Add(timeout)
	for {
		if e.allLanesIdle() {
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (e *Executor) allLanesIdle() bool {
	for _, lane := range e.lanes {
		if !lane.idle() {
			return false
		}
	}
	return true
}

// Stop halts every lane worker. Call after StopAll has drained in-flight
// work.
func (e *Executor) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Executor) laneWorker(lane *portLane) {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case <-lane.wake:
			for {
				j, ok := lane.pop()
				if !ok {
					break
				}
				e.process(lane, j)
			}
		}
	}
}

func (e *Executor) process(lane *portLane, j *job) {
	defer e.forgetToken(j.cancel)
	lane.setExecuting(true)
	defer lane.setExecuting(false)

	if e.mgr.IsDegraded(lane.port) {
		j.resultCh <- DeviceGone
		return
	}

	if lane.heldOwner != "" && lane.heldOwner != j.userID {
		e.forceReleaseHolds(lane)
	}
	wasArmed := lane.heldOwner == j.userID && lane.heldArmedForRelease

	outcome := e.runJob(lane, j)

	if wasArmed {
		e.forceReleaseHolds(lane)
	} else if lane.heldOwner == j.userID && len(lane.held) > 0 {
		lane.heldArmedForRelease = true
	}

	j.resultCh <- outcome
}

func (e *Executor) runJob(lane *portLane, j *job) Outcome {
	for _, sub := range j.seq.Subsequences {
		if j.cancel.Cancelled() {
			e.forceReleaseHolds(lane)
			return Cancelled
		}

		byPort, order := groupByPort(sub.Inputs)
		devices := make(map[int]vgamepad.Device, len(order))
		for _, p := range order {
			d, err := e.mgr.Get(p)
			if err != nil {
				e.mgr.MarkDegraded(p)
				e.forceReleaseHolds(lane)
				e.notify(j.userID, fmt.Sprintf("controller port %d is unavailable", p+1))
				return DeviceGone
			}
			devices[p] = d
		}

		for _, p := range order {
			d := devices[p]
			for _, in := range byPort[p] {
				if in.Release {
					d.Release(in.Name)
					if p == lane.port {
						delete(lane.held, in.Name)
					}
					continue
				}
				if in.Percent >= 0 {
					d.SetAxis(in.Name, int8(in.Percent))
					continue
				}
				d.Press(in.Name)
			}
		}
		if err := updateAll(devices, order); err != nil {
			e.degradeAndRelease(lane, order)
			return DeviceGone
		}

		dur := sub.MaxDurationMs(e.cfg.FrameMs)
		if dur > 0 {
			select {
			case <-time.After(time.Duration(dur) * time.Millisecond):
			case <-j.cancel.Done():
				e.releaseChordNonHolds(devices, order, byPort)
				e.forceReleaseHolds(lane)
				return Cancelled
			}
		}

		for _, p := range order {
			d := devices[p]
			for _, in := range byPort[p] {
				if in.Release || in.Percent >= 0 {
					continue
				}
				if in.Hold {
					if p == lane.port {
						lane.held[in.Name] = true
						lane.heldOwner = j.userID
					}
					continue
				}
				d.Release(in.Name)
			}
		}
		if err := updateAll(devices, order); err != nil {
			e.degradeAndRelease(lane, order)
			return DeviceGone
		}
	}
	return Completed
}

func (e *Executor) degradeAndRelease(lane *portLane, ports []int) {
	for _, p := range ports {
		e.mgr.MarkDegraded(p)
	}
	e.forceReleaseHolds(lane)
}

func (e *Executor) releaseChordNonHolds(devices map[int]vgamepad.Device, order []int, byPort map[int][]model.Input) {
	for _, p := range order {
		d := devices[p]
		for _, in := range byPort[p] {
			if in.Percent >= 0 {
				continue
			}
			d.Release(in.Name)
		}
		d.Update()
	}
}

// forceReleaseHolds clears every input this lane's port is currently
// holding, releasing the button on the real device.
func (e *Executor) forceReleaseHolds(lane *portLane) {
	if len(lane.held) == 0 {
		lane.heldOwner = ""
		lane.heldArmedForRelease = false
		return
	}
	if d, err := e.mgr.Get(lane.port); err == nil {
		for name := range lane.held {
			d.Release(name)
		}
		d.Update()
	}
	lane.held = make(map[string]bool)
	lane.heldOwner = ""
	lane.heldArmedForRelease = false
}

// groupByPort buckets a chord's real button/axis inputs by target port.
// Wait tokens ('.'/'#', model.Input.IsWait) carry no device action at
// all — spec.md §8's worked trace never presses or releases them, only
// the chord's sleep duration (InputSubSequence.MaxDurationMs, computed
// over the full Inputs slice, wait tokens included) honors them — so
// they're dropped here before any device is ever touched.
func groupByPort(inputs []model.Input) (map[int][]model.Input, []int) {
	byPort := make(map[int][]model.Input)
	var order []int
	for _, in := range inputs {
		if in.IsWait() {
			continue
		}
		if _, ok := byPort[in.Port]; !ok {
			order = append(order, in.Port)
		}
		byPort[in.Port] = append(byPort[in.Port], in)
	}
	return byPort, order
}

func updateAll(devices map[int]vgamepad.Device, order []int) error {
	for _, p := range order {
		if err := devices[p].Update(); err != nil {
			return err
		}
	}
	return nil
}
