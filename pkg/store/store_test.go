package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreSetGet(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set(ScopeGuard, "label", "nightly"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	var got string
	if err := s.Get(ScopeGuard, "label", &got); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "nightly" {
		t.Errorf("expected %q, got %q", "nightly", got)
	}

	if err := s.Set(ScopeGuard, "label", "weekly"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := s.Get(ScopeGuard, "label", &got); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "weekly" {
		t.Errorf("expected overwrite to %q, got %q", "weekly", got)
	}
}

func TestBoltStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	var v any
	err := s.Get(ScopeGuard, "missing", &v)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestBoltStoreUnknownScope(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("nope", "k", 1); err == nil {
		t.Error("expected error for unknown scope on Set")
	}
	var v any
	if err := s.Get("nope", "k", &v); err == nil {
		t.Error("expected error for unknown scope on Get")
	}
	if _, err := s.Keys("nope"); err == nil {
		t.Error("expected error for unknown scope on Keys")
	}
}

func TestBoltStoreDeleteAndKeys(t *testing.T) {
	s := newTestStore(t)

	for _, k := range []string{"b", "a", "c"} {
		if err := s.Set(ScopeGuard, k, k); err != nil {
			t.Fatalf("Set error: %v", err)
		}
	}
	if err := s.Delete(ScopeGuard, "b"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	keys, err := s.Keys(ScopeGuard)
	if err != nil {
		t.Fatalf("Keys error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("expected [a c], got %v", keys)
	}
}

func TestBoltStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := SaveLastRun(s1, LastRun{At: 1700000000123, Pass: true}); err != nil {
		t.Fatalf("SaveLastRun error: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()

	r, ok, err := LoadLastRun(s2)
	if err != nil {
		t.Fatalf("LoadLastRun error: %v", err)
	}
	if !ok {
		t.Fatal("expected a recorded run")
	}
	if r.At != 1700000000123 || !r.Pass {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestLastRun(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := LoadLastRun(s)
	if err != nil {
		t.Fatalf("LoadLastRun error: %v", err)
	}
	if ok {
		t.Error("expected no record before the first run")
	}

	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	if err := SaveLastRun(s, LastRun{At: at.UnixMilli(), Pass: true}); err != nil {
		t.Fatalf("SaveLastRun error: %v", err)
	}
	if err := SaveLastRun(s, LastRun{At: at.Add(time.Minute).UnixMilli(), Pass: false}); err != nil {
		t.Fatalf("SaveLastRun error: %v", err)
	}

	r, ok, err := LoadLastRun(s)
	if err != nil || !ok {
		t.Fatalf("LoadLastRun = %v, %v", ok, err)
	}
	if r.Pass {
		t.Error("expected the second run to overwrite the first")
	}
	if !r.Time().Equal(at.Add(time.Minute)) {
		t.Errorf("expected %v, got %v", at.Add(time.Minute), r.Time())
	}

	var raw map[string]any
	if err := s.Get(ScopeGuard, KeyLastRun, &raw); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(raw) != 2 {
		t.Errorf("expected exactly {at, pass}, got %v", raw)
	}
	if _, ok := raw["at"].(float64); !ok {
		t.Errorf("expected numeric at, got %T", raw["at"])
	}
	if raw["pass"] != false {
		t.Errorf("expected pass=false, got %v", raw["pass"])
	}
}

func TestOpenInvalidPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "x.db")); err == nil {
		t.Error("expected error for invalid path")
	}
}
