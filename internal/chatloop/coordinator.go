package chatloop

import (
	"time"

	"github.com/flexer23/TRTwitchPlaysBot/internal/controllermgr"
	"github.com/flexer23/TRTwitchPlaysBot/internal/exec"
)

// Coordinator implements the cooperative shutdown and /stopall sequence
// from spec.md §5: cancel every in-flight sequence, wait (bounded) for
// lanes to drain, then release the controller pool.
type Coordinator struct {
	loop            *Loop
	executor        *exec.Executor
	mgr             *controllermgr.Manager
	maxDrainTimeout time.Duration
}

// NewCoordinator ties the tick loop, executor and controller manager
// together for /stopall and process shutdown.
func NewCoordinator(loop *Loop, executor *exec.Executor, mgr *controllermgr.Manager, maxDrainTimeout time.Duration) *Coordinator {
	if maxDrainTimeout <= 0 {
		maxDrainTimeout = 5 * time.Second
	}
	return &Coordinator{loop: loop, executor: executor, mgr: mgr, maxDrainTimeout: maxDrainTimeout}
}

// StopAll answers a chat-issued "/stopall": cancel every sequence and
// wait for lanes to release held state, but keep the loop and devices
// running.
func (c *Coordinator) StopAll() {
	c.executor.StopAll(c.maxDrainTimeout)
}

// Shutdown performs the full cooperative shutdown: stop ticking, cancel
// and drain every sequence, stop lane workers, then release every
// acquired controller.
func (c *Coordinator) Shutdown() {
	c.loop.Stop()
	c.executor.StopAll(c.maxDrainTimeout)
	c.executor.Stop()
	c.mgr.Cleanup()
}
