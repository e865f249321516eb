// Package vgamepad defines the narrow interface the core calls through to
// reach the OS-specific virtual-HID driver (spec.md §6, out of scope as a
// collaborator). Only the interface and a test double live here; a real
// uinput/vJoy-backed implementation is an external concern that plugs in
// behind Backend.
package vgamepad

import "errors"

var (
	// ErrNotAcquired is returned by any operation on a device that hasn't
	// been successfully Acquire()d (or has since been released).
	ErrNotAcquired = errors.New("vgamepad: device not acquired")
	// ErrDeviceGone is returned when the underlying HID device vanished
	// (unplugged, driver crash) mid-operation.
	ErrDeviceGone = errors.New("vgamepad: device gone")
)

// Device is one virtual HID controller, addressed by the backend's own
// descriptor. All methods must be safe to call from the executor's port
// lane goroutine; callers never hold the device across a sleep.
type Device interface {
	// Press latches a button down. Idempotent.
	Press(button string) error
	// Release lifts a button. A no-op if the button wasn't pressed.
	Release(button string) error
	// SetAxis moves an axis to the given signed percentage, -100..100.
	SetAxis(axis string, percent int8) error
	// Update flushes all pending Press/Release/SetAxis calls as a single
	// HID report, so a chord appears atomic to anything reading the
	// device. Must be called after every chord.
	Update() error
	// Reset releases every button and centers every axis.
	Reset() error
}

// Backend opens and closes virtual HID devices by 0-based slot index.
type Backend interface {
	// MinCount and MaxCount bound how many devices this backend can open
	// on the current platform.
	MinCount() int
	MaxCount() int
	// Acquire opens the device at the given index.
	Acquire(index int) (Device, error)
	// Release closes a previously acquired device.
	Release(index int) error
}
