package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/snowerr"
)

// KVStore is the abstract contract the Manager persists through: a flat
// string-keyed, string-valued store with get-or-absent and upsert
// semantics. A MySQL-table-backed implementation is provided; any other
// store (Redis, a config service, ...) can implement this instead.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

const createCheckpointTableSQL = `
CREATE TABLE IF NOT EXISTS snowdoc_checkpoint (
	k VARCHAR(255) PRIMARY KEY,
	v LONGTEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB;
`

// MySQLStore is a KVStore backed by a single table on the source database.
type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewMySQLStore creates a MySQLStore. EnsureTable must be called once
// before Get/Set are used.
func NewMySQLStore(db *sql.DB, log *logger.Logger) *MySQLStore {
	if log == nil {
		log = logger.NewDefault()
	}
	return &MySQLStore{db: db, log: log}
}

// EnsureTable creates the checkpoint table if it doesn't already exist.
// Idempotent and safe to call on every startup.
func (s *MySQLStore) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCheckpointTableSQL); err != nil {
		return &snowerr.CheckpointWriteError{Key: "(table)", Cause: fmt.Errorf("create snowdoc_checkpoint table: %w", err)}
	}
	return nil
}

// Get looks up key. found is false if no row exists.
func (s *MySQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM snowdoc_checkpoint WHERE k = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &snowerr.CheckpointWriteError{Key: key, Cause: fmt.Errorf("read: %w", err)}
	}
	return value, true, nil
}

// Set upserts key to value.
func (s *MySQLStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO snowdoc_checkpoint (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)",
		key, value,
	)
	if err != nil {
		return &snowerr.CheckpointWriteError{Key: key, Cause: fmt.Errorf("write: %w", err)}
	}
	s.log.Debugf("checkpoint key %q updated", key)
	return nil
}
