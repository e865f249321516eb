package exec

import (
	"testing"
	"time"

	"github.com/flexer23/TRTwitchPlaysBot/internal/controllermgr"
	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
	"github.com/flexer23/TRTwitchPlaysBot/internal/vgamepad"
)

func newTestExecutor(t *testing.T, ports int) (*Executor, *controllermgr.Manager, *vgamepad.MockBackend) {
	t.Helper()
	backend := vgamepad.NewMockBackend()
	backend.MaxDevices = ports
	mgr := controllermgr.New(backend)
	if got := mgr.Init(ports); got != ports {
		t.Fatalf("Init(%d) = %d", ports, got)
	}
	e := New(mgr, nil, Config{FrameMs: 16, MaxQueueDepth: 4})
	e.Start()
	return e, mgr, backend
}

func device(t *testing.T, mgr *controllermgr.Manager, port int) *vgamepad.MockDevice {
	t.Helper()
	d, err := mgr.Get(port)
	if err != nil {
		t.Fatalf("Get(%d): %v", port, err)
	}
	return d.(*vgamepad.MockDevice)
}

func seqOf(subs ...model.InputSubSequence) model.InputSequence {
	return model.InputSequence{Result: model.Valid, Subsequences: subs}
}

func TestCarryOutSingleInput(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	seq := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 20, Unit: model.UnitMilliseconds, Percent: -1},
	}})

	_, result, err := e.CarryOut("alice", seq, 0)
	if err != nil {
		t.Fatalf("CarryOut: %v", err)
	}
	if got := <-result; got != Completed {
		t.Fatalf("Outcome = %v, want Completed", got)
	}

	d := device(t, mgr, 0)
	want := []string{"press:a", "update", "release:a", "update"}
	if !eventsEqual(d.Events, want) {
		t.Fatalf("Events = %v, want %v", d.Events, want)
	}
}

func TestChordAtomicityOneUpdateBetweenPressAndRelease(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	seq := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1},
		{Name: "b", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1},
	}})

	_, result, _ := e.CarryOut("alice", seq, 0)
	<-result

	d := device(t, mgr, 0)
	updates := 0
	sawReleaseBeforeSecondUpdate := false
	for i, ev := range d.Events {
		if ev == "update" {
			updates++
			if updates == 1 {
				for _, before := range d.Events[:i] {
					if before == "release:a" || before == "release:b" {
						sawReleaseBeforeSecondUpdate = true
					}
				}
			}
		}
	}
	if updates != 2 {
		t.Fatalf("Events = %v, want exactly 2 updates", d.Events)
	}
	if sawReleaseBeforeSecondUpdate {
		t.Fatalf("a release happened before the chord's first update: %v", d.Events)
	}
}

func TestHoldPersistsAcrossSequenceReleasedOnExplicitRelease(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	hold := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1, Hold: true},
	}})
	_, r1, _ := e.CarryOut("alice", hold, 0)
	<-r1

	d := device(t, mgr, 0)
	if !d.Pressed["a"] {
		t.Fatalf("hold input should still be pressed: %v", d.Pressed)
	}

	release := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1, Release: true},
	}})
	_, r2, _ := e.CarryOut("alice", release, 0)
	<-r2

	if d.Pressed["a"] {
		t.Fatalf("explicit release should have cleared the hold")
	}
}

func TestHoldForceReleasedAtEndOfOwnersNextSequence(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	hold := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1, Hold: true},
	}})
	_, r1, _ := e.CarryOut("alice", hold, 0)
	<-r1

	next := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "b", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1},
	}})
	_, r2, _ := e.CarryOut("alice", next, 0)
	<-r2

	d := device(t, mgr, 0)
	if d.Pressed["a"] {
		t.Fatalf("hold should have been force-released at the end of the owner's next sequence")
	}
}

func TestHoldForceReleasedWhenDifferentUserArrives(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	hold := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1, Hold: true},
	}})
	_, r1, _ := e.CarryOut("alice", hold, 0)
	<-r1

	other := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "b", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1},
	}})
	_, r2, _ := e.CarryOut("bob", other, 0)
	<-r2

	d := device(t, mgr, 0)
	if d.Pressed["a"] {
		t.Fatalf("hold should release as soon as a different user's sequence begins")
	}
}

func TestCancellationReleasesHeldState(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	seq := seqOf(
		model.InputSubSequence{Inputs: []model.Input{
			{Name: "a", Port: 0, Duration: 500, Unit: model.UnitMilliseconds, Percent: -1},
		}},
		model.InputSubSequence{Inputs: []model.Input{
			{Name: "b", Port: 0, Duration: 500, Unit: model.UnitMilliseconds, Percent: -1},
		}},
	)

	cancel, result, err := e.CarryOut("alice", seq, 0)
	if err != nil {
		t.Fatalf("CarryOut: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel.Cancel()

	if got := <-result; got != Cancelled {
		t.Fatalf("Outcome = %v, want Cancelled", got)
	}

	d := device(t, mgr, 0)
	if d.PressedCount() != 0 {
		t.Fatalf("PressedCount = %d, want 0 after cancel", d.PressedCount())
	}
}

func TestQueueFairnessPerPort(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	mkSeq := func(name string) model.InputSequence {
		return seqOf(model.InputSubSequence{Inputs: []model.Input{
			{Name: name, Port: 0, Duration: 15, Unit: model.UnitMilliseconds, Percent: -1},
		}})
	}

	_, r1, _ := e.CarryOut("alice", mkSeq("a"), 0)
	_, r2, _ := e.CarryOut("bob", mkSeq("b"), 0)
	_, r3, _ := e.CarryOut("carol", mkSeq("c"), 0)

	<-r1
	<-r2
	<-r3

	d := device(t, mgr, 0)
	want := []string{
		"press:a", "update", "release:a", "update",
		"press:b", "update", "release:b", "update",
		"press:c", "update", "release:c", "update",
	}
	if !eventsEqual(d.Events, want) {
		t.Fatalf("Events = %v, want sequences played in submission order a,b,c: %v", d.Events, want)
	}
}

func TestDeviceGoneMarksPortDegraded(t *testing.T) {
	e, mgr, backend := newTestExecutor(t, 1)
	defer e.Stop()

	backend.MarkGone(0)

	seq := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 10, Unit: model.UnitMilliseconds, Percent: -1},
	}})
	_, result, _ := e.CarryOut("alice", seq, 0)
	if got := <-result; got != DeviceGone {
		t.Fatalf("Outcome = %v, want DeviceGone", got)
	}
	if !mgr.IsDegraded(0) {
		t.Fatalf("port should be marked degraded")
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	var dropped []string
	backend := vgamepad.NewMockBackend()
	backend.MaxDevices = 1
	mgr := controllermgr.New(backend)
	mgr.Init(1)
	e := New(mgr, func(userID, msg string) { dropped = append(dropped, userID) }, Config{FrameMs: 16, MaxQueueDepth: 2})
	e.Start()
	defer e.Stop()

	long := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "a", Port: 0, Duration: 100, Unit: model.UnitMilliseconds, Percent: -1},
	}})
	short := seqOf(model.InputSubSequence{Inputs: []model.Input{
		{Name: "b", Port: 0, Duration: 5, Unit: model.UnitMilliseconds, Percent: -1},
	}})

	// "zero" starts executing immediately, emptying the queue. "one" and
	// "two" then fill the depth-2 queue; "three" arriving after that must
	// evict "one", the oldest still-queued job.
	_, r0, _ := e.CarryOut("zero", long, 0)
	time.Sleep(10 * time.Millisecond)
	_, r1, _ := e.CarryOut("one", short, 0)
	_, r2, _ := e.CarryOut("two", short, 0)
	_, r3, _ := e.CarryOut("three", short, 0)

	if got := <-r0; got != Completed {
		t.Fatalf("zero outcome = %v", got)
	}
	if got := <-r1; got != Dropped {
		t.Fatalf("one outcome = %v, want Dropped", got)
	}
	if got := <-r2; got != Completed {
		t.Fatalf("two outcome = %v", got)
	}
	if got := <-r3; got != Completed {
		t.Fatalf("three outcome = %v", got)
	}
	if len(dropped) != 1 || dropped[0] != "one" {
		t.Fatalf("dropped = %v, want [one]", dropped)
	}
}

func TestWaitTokenNeverTouchesDevice(t *testing.T) {
	e, mgr, _ := newTestExecutor(t, 1)
	defer e.Stop()

	// spec.md §8's worked trace for "a200ms .300ms b": press(a), update,
	// sleep 200, release(a), update, sleep 300, press(b), update,
	// sleep 200, release(b), update — no press(".")/release(".") anywhere.
	seq := seqOf(
		model.InputSubSequence{Inputs: []model.Input{
			{Name: "a", Port: 0, Duration: 20, Unit: model.UnitMilliseconds, Percent: -1},
		}},
		model.InputSubSequence{Inputs: []model.Input{
			{Name: ".", Port: 0, Duration: 30, Unit: model.UnitMilliseconds, Percent: -1},
		}},
		model.InputSubSequence{Inputs: []model.Input{
			{Name: "b", Port: 0, Duration: 20, Unit: model.UnitMilliseconds, Percent: -1},
		}},
	)

	_, result, err := e.CarryOut("alice", seq, 0)
	if err != nil {
		t.Fatalf("CarryOut: %v", err)
	}
	if got := <-result; got != Completed {
		t.Fatalf("Outcome = %v, want Completed", got)
	}

	d := device(t, mgr, 0)
	want := []string{"press:a", "update", "release:a", "update", "press:b", "update", "release:b", "update"}
	if !eventsEqual(d.Events, want) {
		t.Fatalf("Events = %v, want %v (wait token must never be pressed/released)", d.Events, want)
	}
}

func eventsEqual(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
