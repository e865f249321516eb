package vgamepad

import "sync"

// MockBackend implements Backend without touching any real hardware,
// grounded on the fault-injection test-double shape used by the teacher's
// sandbox.MockLauncher (FailCreate/FailStart/FailStop flags).
type MockBackend struct {
	mu      sync.Mutex
	devices map[int]*MockDevice

	// MaxDevices bounds MaxCount(); 0 means "use DefaultMaxDevices".
	MaxDevices int

	// FailAcquire causes Acquire to fail for the given index for as long
	// as the flag stays set; used
	// to exercise Manager's "never throws for partially acquired pools"
	// behavior (spec.md §4.2).
	FailAcquire map[int]bool

	// Gone marks a device as having vanished; any subsequent call on it
	// returns ErrDeviceGone.
	Gone map[int]bool
}

// DefaultMaxDevices is the mock's platform ceiling absent an override.
const DefaultMaxDevices = 8

// NewMockBackend creates a backend with no devices acquired yet.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		devices:     make(map[int]*MockDevice),
		FailAcquire: make(map[int]bool),
		Gone:        make(map[int]bool),
	}
}

func (b *MockBackend) MinCount() int { return 1 }

func (b *MockBackend) MaxCount() int {
	if b.MaxDevices > 0 {
		return b.MaxDevices
	}
	return DefaultMaxDevices
}

func (b *MockBackend) Acquire(index int) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailAcquire[index] {
		return nil, ErrDeviceGone
	}
	d := &MockDevice{index: index, backend: b}
	b.devices[index] = d
	return d, nil
}

func (b *MockBackend) Release(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.devices, index)
	return nil
}

// MarkGone simulates the device at index disappearing mid-session.
func (b *MockBackend) MarkGone(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Gone[index] = true
}

func (b *MockBackend) isGone(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Gone[index]
}

// MockDevice records every press/release/axis/update call so tests can
// assert on chord atomicity and hold/release balance (spec.md §8).
type MockDevice struct {
	index   int
	backend *MockBackend

	mu      sync.Mutex
	Pressed map[string]bool
	Axes    map[string]int8
	Events  []string // ordered log: "press:a", "release:a", "axis:lx", "update", "reset"
}

func (d *MockDevice) ensure() {
	if d.Pressed == nil {
		d.Pressed = make(map[string]bool)
	}
	if d.Axes == nil {
		d.Axes = make(map[string]int8)
	}
}

func (d *MockDevice) checkGone() error {
	if d.backend.isGone(d.index) {
		return ErrDeviceGone
	}
	return nil
}

func (d *MockDevice) Press(button string) error {
	if err := d.checkGone(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	d.Pressed[button] = true
	d.Events = append(d.Events, "press:"+button)
	return nil
}

func (d *MockDevice) Release(button string) error {
	if err := d.checkGone(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	delete(d.Pressed, button)
	d.Events = append(d.Events, "release:"+button)
	return nil
}

func (d *MockDevice) SetAxis(axis string, percent int8) error {
	if err := d.checkGone(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	d.Axes[axis] = percent
	d.Events = append(d.Events, "axis:"+axis)
	return nil
}

func (d *MockDevice) Update() error {
	if err := d.checkGone(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Events = append(d.Events, "update")
	return nil
}

func (d *MockDevice) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensure()
	for k := range d.Pressed {
		delete(d.Pressed, k)
	}
	for k := range d.Axes {
		d.Axes[k] = 0
	}
	d.Events = append(d.Events, "reset")
	return nil
}

// PressedCount returns how many buttons are currently held, for
// hold/release balance assertions.
func (d *MockDevice) PressedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Pressed)
}
