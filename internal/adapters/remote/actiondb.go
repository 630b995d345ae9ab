package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// ActionDB is the server-side action index: an SQLite table mapping request
// fingerprints to execution results. Unlike the engine's file-based caches it
// serves many clients, so it gets a real database with proper indexing.
type ActionDB struct {
	db *sql.DB
}

// OpenActionDB opens (creating if needed) the action database at path.
func OpenActionDB(ctx context.Context, path string) (*ActionDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, "failed to create action database directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open action database")
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "failed to set busy_timeout")
	}

	schema := `CREATE TABLE IF NOT EXISTS action_results (
  fingerprint TEXT PRIMARY KEY,
  instance    TEXT NOT NULL DEFAULT '',
  result      JSON NOT NULL,
  exit_code   INTEGER NOT NULL,
  created_at  TEXT NOT NULL,
  last_hit_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS action_results_last_hit_idx ON action_results(last_hit_at);`
	if _, err := db.ExecContext(pctx, schema); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "failed to bootstrap action database")
	}

	return &ActionDB{db: db}, nil
}

// Close closes the underlying database.
func (a *ActionDB) Close() error {
	return a.db.Close()
}

// Get returns the cached result for the fingerprint, or nil on a miss. A hit
// refreshes the entry's last-hit timestamp.
func (a *ActionDB) Get(ctx context.Context, instance, fingerprint string) (*domain.ProcessResult, error) {
	var encoded []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT result FROM action_results WHERE fingerprint = ? AND instance = ?`,
		fingerprint, instance,
	).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to query action result")
	}

	var result domain.ProcessResult
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, zerr.Wrap(err, "failed to decode action result")
	}

	_, _ = a.db.ExecContext(ctx,
		`UPDATE action_results SET last_hit_at = ? WHERE fingerprint = ? AND instance = ?`,
		now(), fingerprint, instance,
	)
	return &result, nil
}

// Put stores the result for the fingerprint, replacing any prior entry.
func (a *ActionDB) Put(ctx context.Context, instance, fingerprint string, result domain.ProcessResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return zerr.Wrap(err, "failed to encode action result")
	}

	ts := now()
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO action_results (fingerprint, instance, result, exit_code, created_at, last_hit_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   instance = excluded.instance,
		   result = excluded.result,
		   exit_code = excluded.exit_code,
		   last_hit_at = excluded.last_hit_at`,
		fingerprint, instance, encoded, result.ExitCode, ts, ts,
	)
	if err != nil {
		return zerr.Wrap(err, "failed to store action result")
	}
	return nil
}

// Reclaim deletes entries whose last hit is older than maxAge. It returns the
// number of entries removed.
func (a *ActionDB) Reclaim(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timestampLayout)
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM action_results WHERE last_hit_at < ?`, cutoff)
	if err != nil {
		return 0, zerr.Wrap(err, "failed to reclaim action results")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// timestampLayout keeps trailing zeros so stored timestamps compare
// lexicographically in SQL.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(timestampLayout)
}
