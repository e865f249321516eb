package macro

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsStoreFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "macros.json")

	s := NewStore(nil)
	s.Add("#jump", "a")
	if err := SaveSeedsFile(path, s); err != nil {
		t.Fatalf("SaveSeedsFile: %v", err)
	}

	w, err := NewWatcher(path, s)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	updated := NewStore(nil)
	updated.Add("#jump", "a")
	updated.Add("#combo", "a b")
	if err := SaveSeedsFile(path, updated); err != nil {
		t.Fatalf("SaveSeedsFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.GetPlain("#combo"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for #combo to appear via hot reload")
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "macros.json")

	s := NewStore(nil)
	if err := SaveSeedsFile(path, s); err != nil {
		t.Fatalf("SaveSeedsFile: %v", err)
	}

	w, err := NewWatcher(path, s)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	versionBefore := s.Version()

	updated := NewStore(nil)
	updated.Add("#jump", "a")
	for i := 0; i < 3; i++ {
		if err := SaveSeedsFile(path, updated); err != nil {
			t.Fatalf("SaveSeedsFile: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.Version() == versionBefore {
		time.Sleep(20 * time.Millisecond)
	}
	firstReloadVersion := s.Version()
	if firstReloadVersion == versionBefore {
		t.Fatal("timed out waiting for debounced reload")
	}

	time.Sleep(700 * time.Millisecond)
	if s.Version() != firstReloadVersion {
		t.Fatalf("version changed again after settling, want rapid writes collapsed into one reload: %d -> %d", firstReloadVersion, s.Version())
	}
}
