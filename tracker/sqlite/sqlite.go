// Package sqlite persists trial records in a SQLite database, so
// deduplication survives across hyperparameter runs.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/molml/hypersearch/tracker"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Store implements tracker.Tracker on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ tracker.Tracker = (*Store)(nil)

// New opens (creating if needed) the trial database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open trial database %q", dbPath)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to migrate trial database %q", dbPath)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trials (
		fingerprint TEXT PRIMARY KEY,
		trial_id TEXT NOT NULL,
		params JSON NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trials_status ON trials(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Exists implements tracker.Tracker.
func (s *Store) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM trials WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to query trial fingerprint")
	}
	return true, nil
}

// Record implements tracker.Tracker. Re-recording a fingerprint updates
// the stored status and trial id.
func (s *Store) Record(ctx context.Context, rec tracker.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	paramsJSON := []byte(rec.Params)
	if len(paramsJSON) == 0 {
		paramsJSON = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trials (fingerprint, trial_id, params, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			trial_id = excluded.trial_id,
			status = excluded.status
	`, rec.Fingerprint, rec.TrialID, paramsJSON, rec.Status, createdAt)
	if err != nil {
		return errors.Wrap(err, "failed to record trial")
	}
	return nil
}

// Count returns the number of recorded trials.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trials`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count trials")
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
