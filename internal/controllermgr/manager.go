// Package controllermgr owns the fixed pool of virtual controllers (C2 in
// spec.md §4.2), grounded on the teacher's sessions.Manager: a mutex-
// guarded map/slice of live resources with Init/Get/Count/Cleanup and a
// degraded-port tracking addition (spec.md §7).
package controllermgr

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/flexer23/TRTwitchPlaysBot/internal/vgamepad"
)

var (
	// ErrOutOfRange is returned by Get for a port outside the acquired pool.
	ErrOutOfRange = errors.New("controllermgr: port out of range")
	// ErrDegraded is returned when dispatch is attempted against a port
	// marked degraded after a device-gone failure.
	ErrDegraded = errors.New("controllermgr: port degraded, awaiting reacquire")
)

// Manager owns an ordered pool of acquired vgamepad.Device slots.
type Manager struct {
	backend vgamepad.Backend

	mu       sync.RWMutex
	devices  []vgamepad.Device
	degraded []bool
}

// New creates a Manager bound to the given backend. Call Init to actually
// acquire devices.
func New(backend vgamepad.Backend) *Manager {
	return &Manager{backend: backend}
}

// Init acquires up to `count` devices, clamped to the backend's platform
// range with a console warning, matching spec.md §4.2: initialization
// never fails for a partially acquired pool, it returns however many
// devices were actually acquired.
func (m *Manager) Init(count int) int {
	min, max := m.backend.MinCount(), m.backend.MaxCount()
	clamped := count
	if clamped < min {
		clamped = min
	}
	if clamped > max {
		log.Printf("[controllermgr] requested %d controllers, platform max is %d; clamping", count, max)
		clamped = max
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices = make([]vgamepad.Device, 0, clamped)
	m.degraded = make([]bool, 0, clamped)
	for i := 0; i < clamped; i++ {
		d, err := m.backend.Acquire(i)
		if err != nil {
			log.Printf("[controllermgr] failed to acquire controller %d: %v", i+1, err)
			break
		}
		m.devices = append(m.devices, d)
		m.degraded = append(m.degraded, false)
	}
	return len(m.devices)
}

// Count returns the number of successfully acquired controllers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// Get returns the controller at the given 0-based port, or ErrOutOfRange.
// Display of the port to users must add 1 (spec.md §4.2).
func (m *Manager) Get(port int) (vgamepad.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if port < 0 || port >= len(m.devices) {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, port+1)
	}
	if m.degraded[port] {
		return nil, fmt.Errorf("%w: port %d", ErrDegraded, port+1)
	}
	return m.devices[port], nil
}

// MarkDegraded flags a port as unusable after a DeviceGone failure. The
// executor calls this from its failure path (spec.md §7).
func (m *Manager) MarkDegraded(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if port >= 0 && port < len(m.degraded) {
		m.degraded[port] = true
	}
}

// IsDegraded reports whether a port is currently marked degraded.
func (m *Manager) IsDegraded(port int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return port >= 0 && port < len(m.degraded) && m.degraded[port]
}

// Reacquire attempts to re-open the device backing a degraded port and
// clears the degraded flag on success.
func (m *Manager) Reacquire(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if port < 0 || port >= len(m.devices) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, port+1)
	}
	d, err := m.backend.Acquire(port)
	if err != nil {
		return err
	}
	m.devices[port] = d
	m.degraded[port] = false
	return nil
}

// Cleanup releases every acquired controller. Safe to call once at
// shutdown; safe to call on an empty pool.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.devices {
		if err := m.backend.Release(i); err != nil {
			log.Printf("[controllermgr] failed to release controller %d: %v", i+1, err)
		}
	}
	m.devices = nil
	m.degraded = nil
}
