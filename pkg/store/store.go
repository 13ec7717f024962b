// Package store persists small JSON records in a bbolt file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Scopes are bbolt buckets created when the store opens.
const (
	ScopeGuard = "guard" // last Baseline Guard outcome
)

var scopes = []string{ScopeGuard}

// ErrKeyNotFound is returned by Get for a missing key.
var ErrKeyNotFound = errors.New("store: key not found")

// Store provides scoped key-value storage for JSON values.
type Store interface {
	Get(scope, key string, out any) error
	Set(scope, key string, value any) error
	Delete(scope, key string) error
	Keys(scope string) ([]string, error)
	Close() error
}

// BoltStore is a bbolt-backed Store.
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex
}

// Open opens (or creates) the store at path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, scope := range scopes {
			if _, err := tx.CreateBucketIfNotExists([]byte(scope)); err != nil {
				return fmt.Errorf("create bucket %s: %w", scope, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get decodes the value stored under scope/key into out.
func (s *BoltStore) Get(scope, key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("scope not found: %s", scope)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s/%s", ErrKeyNotFound, scope, key)
		}
		return json.Unmarshal(data, out)
	})
}

// Set stores value under scope/key, replacing any previous value.
func (s *BoltStore) Set(scope, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("scope not found: %s", scope)
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal value: %w", err)
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) Delete(scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("scope not found: %s", scope)
		}
		return b.Delete([]byte(key))
	})
}

// Keys lists the keys of a scope in byte order.
func (s *BoltStore) Keys(scope string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		if b == nil {
			return fmt.Errorf("scope not found: %s", scope)
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
