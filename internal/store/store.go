// Package store is the persistence collaborator spec.md §1 and §6 call
// out as external: a key-value-store-like home for users, macros, memes,
// settings and input callbacks. The core only depends on the Store
// interface; Sqlite is the concrete, exercised implementation backed by
// modernc.org/sqlite (grounded on the teacher's desktop/d1-shim, which
// opens the same driver the same way).
package store

import (
	"errors"

	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
)

// ErrNotFound is returned by LoadUser and LoadSettingsJSON when the
// requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// MacroRecord is the on-disk shape of a model.Macro: its name and raw
// expansion.
type MacroRecord struct {
	Name      string
	Expansion string
}

// Store is the narrow persistence surface the core talks through. Every
// method is format-agnostic in contract; Sqlite below is one
// implementation and a JSON-file implementation would satisfy it equally.
type Store interface {
	// Users
	SaveUser(u *model.User) error
	LoadUser(name string) (*model.User, error)
	LoadAllUsers() ([]*model.User, error)

	// Macros
	SaveMacro(m MacroRecord) error
	DeleteMacro(name string) error
	LoadAllMacros() ([]MacroRecord, error)

	// Memes: lowercase-exact trigger -> response text
	SaveMeme(trigger, response string) error
	DeleteMeme(trigger string) error
	LoadAllMemes() (map[string]string, error)

	// Settings is stored as a single opaque JSON blob under a fixed key;
	// the config package owns its shape.
	SaveSettingsJSON(data []byte) error
	LoadSettingsJSON() ([]byte, error)

	// InputCallbacks: per-input-name callback identifiers to re-attach on
	// load (spec.md §6).
	SaveInputCallback(inputName, callbackID string) error
	LoadInputCallbacks() (map[string]string, error)

	Close() error
}
