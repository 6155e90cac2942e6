// Package capability caches, per model, which optional Provider request
// parameters and tools are actually accepted — avoiding a round trip of
// "try and see" on every run. Entries live for a 7-day TTL in an embedded
// Badger store and are only ever downgraded (true -> false) by an explicit
// parameter-rejection error from the Provider; transport noise (timeouts,
// 429s, 5xx) never flips a capability.
package capability

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultTTL matches the spec's 7-day capability cache lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// Record is the cached verdict for one model.
type Record struct {
	Model          string          `json:"model"`
	Capabilities   map[string]bool `json:"capabilities"`
	ForceRefreshAt time.Time       `json:"force_refresh_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Stale reports whether Record should be re-probed: either the TTL elapsed,
// or a force-refresh marker was set after the last update.
func (r Record) Stale(ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if time.Since(r.UpdatedAt) > ttl {
		return true
	}
	return !r.ForceRefreshAt.IsZero() && r.ForceRefreshAt.After(r.UpdatedAt)
}

// Store wraps a Badger KV instance keyed by model name.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a Badger store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("capability: open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Get returns the cached Record for model, or (Record{}, false) if absent.
func (s *Store) Get(model string) (Record, bool, error) {
	var rec Record
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(model))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("capability: get %s: %w", model, err)
	}
	return rec, found, nil
}

// Put upserts rec, stamping UpdatedAt and clearing any prior force-refresh
// marker (the refresh this call represents has now happened).
func (s *Store) Put(rec Record) error {
	rec.UpdatedAt = time.Now().UTC()
	rec.ForceRefreshAt = time.Time{}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("capability: marshal: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(rec.Model), data).WithTTL(2 * DefaultTTL))
	})
}

// Downgrade flips a single capability to false in response to an explicit
// parameter-rejection error from the Provider — the only event allowed to
// move a capability from true to false.
func (s *Store) Downgrade(model, capability string) error {
	rec, found, err := s.Get(model)
	if err != nil {
		return err
	}
	if !found {
		rec = Record{Model: model, Capabilities: map[string]bool{}}
	}
	if rec.Capabilities == nil {
		rec.Capabilities = map[string]bool{}
	}
	rec.Capabilities[capability] = false
	return s.Put(rec)
}

// MarkForceRefresh flags model for re-probing on next use without deleting
// the existing (possibly still-useful) cached verdicts.
func (s *Store) MarkForceRefresh(model string) error {
	rec, found, err := s.Get(model)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	rec.ForceRefreshAt = time.Now().UTC().Add(time.Millisecond) // strictly after UpdatedAt
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("capability: marshal: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(model), data).WithTTL(2 * DefaultTTL))
	})
}
