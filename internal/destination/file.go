package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ci-telemetry/snowdoc/internal/encode"
	"github.com/ci-telemetry/snowdoc/internal/logger"
)

// FileDestination writes encoded records as newline-delimited JSON, one
// object per root document, for local development and integration tests
// where standing up a warehouse connection isn't worth it. Schema widening
// is logged to a companion "schema.jsonl" manifest rather than enforced,
// since a flat file has no column types to alter. One FileDestination backs
// one destination table, matching the one-table-per-extraction-target shape
// the rest of the pipeline assumes.
type FileDestination struct {
	dir string
	log *logger.Logger

	mu    sync.Mutex
	table string
	file  *os.File
}

// NewFileDestination creates a FileDestination rooted at dir. dir is created
// if it does not already exist.
func NewFileDestination(dir string, log *logger.Logger) (*FileDestination, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory %q: %w", dir, err)
	}
	return &FileDestination{dir: dir, log: log}, nil
}

// Close closes the table file, if open.
func (d *FileDestination) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// EnsureTable opens (creating if necessary) the NDJSON file backing
// schema.Table. Calling it again for the same table is a no-op; calling it
// for a different table than the one already open is an error, since a
// FileDestination backs exactly one table for the lifetime of an extraction
// target.
func (d *FileDestination) EnsureTable(_ context.Context, schema Schema) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		if d.table != schema.Table {
			return fmt.Errorf("destination already bound to table %q, cannot rebind to %q", d.table, schema.Table)
		}
		return nil
	}

	path := filepath.Join(d.dir, schema.Table+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - dir from app config
	if err != nil {
		return fmt.Errorf("open destination file %q: %w", path, err)
	}
	d.table, d.file = schema.Table, f
	d.log.Debugf("destination table %q backed by %s", schema.Table, path)
	return nil
}

// Extend appends each record as one JSON line to the table's file, flushing
// after the batch so a crash mid-push leaves whole lines on disk.
func (d *FileDestination) Extend(_ context.Context, records []*encode.Record) error {
	if len(records) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return fmt.Errorf("destination table not initialized; call EnsureTable first")
	}

	for _, rec := range records {
		line, err := encode.MarshalRecord(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := d.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return d.file.Sync()
}

// ApplySchemaUpdate records the observed columns to a companion manifest
// file rather than altering anything, since NDJSON has no column types to
// widen.
func (d *FileDestination) ApplySchemaUpdate(_ context.Context, adds []encode.ColumnUpdate) error {
	if len(adds) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	path := filepath.Join(d.dir, "schema.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - dir from app config
	if err != nil {
		return fmt.Errorf("open schema manifest %q: %w", path, err)
	}
	defer f.Close()

	for _, add := range adds {
		line, err := json.Marshal(add)
		if err != nil {
			return fmt.Errorf("marshal column update: %w", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write column update: %w", err)
		}
	}
	return nil
}
