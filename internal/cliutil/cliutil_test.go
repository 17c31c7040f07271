package cliutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClearDirRemovesEntriesButKeepsRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "ab")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "cd.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := clearDir(dir); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("want empty dir, got %v", entries)
	}
}

func TestClearDirMissingIsNotError(t *testing.T) {
	if err := clearDir(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("want nil error for a missing cache dir, got %v", err)
	}
}

func TestModeFlagRejectsUnknownValue(t *testing.T) {
	var m modeFlag
	if err := m.Set("bogus"); err == nil {
		t.Fatal("want error for an unrecognized mode")
	}
	if m.set {
		t.Error("a rejected Set must not mark the flag as set")
	}
}

func TestModeFlagAcceptsKnownValues(t *testing.T) {
	for _, v := range []string{"enforce", "warn", "off"} {
		var m modeFlag
		if err := m.Set(v); err != nil {
			t.Errorf("Set(%q) should succeed, got %v", v, err)
		}
		if !m.set || m.String() != v {
			t.Errorf("Set(%q) did not record the value", v)
		}
	}
}
