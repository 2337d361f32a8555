// Package tracker records completed and in-flight trials so a
// hyperparameter search never re-runs a configuration it has already
// dispatched.
//
// Trials are identified by the deterministic fingerprint of their full
// candidate configuration; the tracker only answers existence lookups and
// stores records, it knows nothing about execution. Memory is the
// in-process implementation; tracker/sqlite persists records across runs.
package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Record identifies one previously dispatched trial.
type Record struct {
	Fingerprint string          `json:"fingerprint"`
	TrialID     string          `json:"trial_id"`
	Params      json.RawMessage `json:"params"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Tracker is the deduplication collaborator of the trial dispatcher.
//
// Implementations need not be strongly consistent: a race between two
// processes dispatching the same fingerprint is tolerated as a rare
// harmless duplicate run.
type Tracker interface {
	// Exists reports whether a trial with this fingerprint was recorded.
	Exists(ctx context.Context, fingerprint string) (bool, error)
	// Record stores (or overwrites) a trial record.
	Record(ctx context.Context, rec Record) error
}

// Memory is an in-process Tracker, safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemory creates an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]Record)}
}

// Exists implements Tracker.
func (m *Memory) Exists(_ context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.recs[fingerprint]
	return found, nil
}

// Record implements Tracker.
func (m *Memory) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Fingerprint] = rec
	return nil
}

// Len returns the number of recorded trials.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}
