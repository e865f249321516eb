package config

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/flexer23/TRTwitchPlaysBot/internal/store"
)

// SettingsStore is the narrow store.Store surface config needs, so tests
// can fake it without a real database.
type SettingsStore interface {
	SaveSettingsJSON(data []byte) error
	LoadSettingsJSON() ([]byte, error)
}

var _ SettingsStore = (store.Store)(nil)

// Load reads persisted settings from s, falling back to Defaults() if
// none have ever been saved.
func Load(s SettingsStore) (Settings, error) {
	data, err := s.LoadSettingsJSON()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Defaults(), nil
		}
		return Settings{}, err
	}
	settings := Defaults()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Save persists settings to s as JSON.
func Save(s SettingsStore, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return s.SaveSettingsJSON(data)
}

// LoadFile reads a standalone settings JSON document from disk, for
// local development without a store configured yet. Missing fields fall
// back to Defaults().
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	settings := Defaults()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// SaveFile writes settings to path as indented JSON, overwriting any
// existing file.
func SaveFile(path string, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
