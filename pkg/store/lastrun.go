package store

import (
	"errors"
	"fmt"
	"time"
)

// KeyLastRun holds the most recent Baseline Guard outcome.
const KeyLastRun = "lastRun"

// LastRun is the persisted outcome of the latest guard run. Each run
// overwrites it; nothing else reads it back except for display.
type LastRun struct {
	At   int64 `json:"at"` // epoch milliseconds
	Pass bool  `json:"pass"`
}

// Time returns At as a time.Time.
func (r LastRun) Time() time.Time {
	return time.UnixMilli(r.At)
}

// SaveLastRun overwrites the last-run record.
func SaveLastRun(s Store, r LastRun) error {
	if err := s.Set(ScopeGuard, KeyLastRun, r); err != nil {
		return fmt.Errorf("save last run: %w", err)
	}
	return nil
}

// LoadLastRun reads the last-run record. ok is false when no run has been
// recorded yet.
func LoadLastRun(s Store) (r LastRun, ok bool, err error) {
	if err := s.Get(ScopeGuard, KeyLastRun, &r); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return LastRun{}, false, nil
		}
		return LastRun{}, false, fmt.Errorf("load last run: %w", err)
	}
	return r, true, nil
}
