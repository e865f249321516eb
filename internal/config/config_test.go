package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flexer23/TRTwitchPlaysBot/internal/store"
)

type fakeSettingsStore struct {
	data []byte
}

func (f *fakeSettingsStore) SaveSettingsJSON(data []byte) error {
	f.data = data
	return nil
}

func (f *fakeSettingsStore) LoadSettingsJSON() ([]byte, error) {
	if f.data == nil {
		return nil, store.ErrNotFound
	}
	return f.data, nil
}

func TestLoadFallsBackToDefaultsWhenNothingSaved(t *testing.T) {
	got, err := Load(&fakeSettingsStore{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if got != want {
		t.Fatalf("Load() = %+v, want Defaults() %+v", got, want)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := &fakeSettingsStore{}
	settings := Defaults()
	settings.ControllerCount = 7
	settings.CommandSigil = "$"

	if err := Save(s, settings); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ControllerCount != 7 || got.CommandSigil != "$" {
		t.Fatalf("Load() = %+v, want ControllerCount 7 and CommandSigil $", got)
	}
}

func TestLoadLoginFileAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "login.json")
	if err := os.WriteFile(path, []byte(`{"bot_name":"filebot","password":"filepass","channel_name":"filechan"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("TRTWITCHPLAYSBOT_PASSWORD", "envpass")

	l, err := LoadLoginFile(path)
	if err != nil {
		t.Fatalf("LoadLoginFile: %v", err)
	}
	if l.BotName != "filebot" {
		t.Fatalf("BotName = %q, want file value preserved", l.BotName)
	}
	if l.Password != "envpass" {
		t.Fatalf("Password = %q, want env override to win", l.Password)
	}
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	initial := Defaults()
	if err := SaveFile(path, initial); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	reloads := make(chan Settings, 8)
	w, err := NewWatcher(path, func(s Settings) { reloads <- s })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	updated := Defaults()
	updated.ControllerCount = 2
	for i := 0; i < 3; i++ {
		if err := SaveFile(path, updated); err != nil {
			t.Fatalf("SaveFile: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case got := <-reloads:
		if got.ControllerCount != 2 {
			t.Fatalf("reloaded ControllerCount = %d, want 2", got.ControllerCount)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced reload")
	}

	select {
	case extra := <-reloads:
		t.Fatalf("expected rapid writes to collapse into one reload, got extra: %+v", extra)
	case <-time.After(700 * time.Millisecond):
	}
}
