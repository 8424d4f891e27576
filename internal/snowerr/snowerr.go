// Package snowerr defines the error kinds the core extraction pipeline can
// surface, and the retry/fatal disposition attached to each.
package snowerr

import "fmt"

// SchemaUnavailable is returned when the source's information schema cannot
// be read.
type SchemaUnavailable struct {
	Database string
	Cause    error
}

func (e *SchemaUnavailable) Error() string {
	return fmt.Sprintf("schema unavailable for database %q: %v", e.Database, e.Cause)
}

func (e *SchemaUnavailable) Unwrap() error { return e.Cause }

// AmbiguousKey is returned when a table required for child grouping has no
// usable primary key.
type AmbiguousKey struct {
	Table string
}

func (e *AmbiguousKey) Error() string {
	return fmt.Sprintf("table %q has no primary key; cannot be used as a many-node", e.Table)
}

// UnreachableRoot is returned when the configured root table does not exist
// in the introspected schema.
type UnreachableRoot struct {
	Table string
}

func (e *UnreachableRoot) Error() string {
	return fmt.Sprintf("root table %q not found in source schema", e.Table)
}

// SchemaDrift is returned when the canonical SQL fingerprint no longer
// matches the stored one and no override was supplied.
type SchemaDrift struct {
	Prefix string
}

func (e *SchemaDrift) Error() string {
	return fmt.Sprintf("schema has changed since the last run (checkpoint prefix %q); rerun with --force to accept the new fingerprint", e.Prefix)
}

// SourceTimeout is returned when a source statement fails or exceeds its
// configured timeout. The driver retries the statement once on this error
// and returns it if the retry fails too.
type SourceTimeout struct {
	Statement string
	Cause     error
}

func (e *SourceTimeout) Error() string {
	return fmt.Sprintf("source statement (%s) failed: %v", e.Statement, e.Cause)
}

func (e *SourceTimeout) Unwrap() error { return e.Cause }

// ReconstructionError indicates the row stream could not be folded into
// documents: a row's root primary key slot was null, or a row opened a group
// whose parent group was not open (a row out of the order the SQL Generator
// promises). The driver also returns it when a batch's documents do not
// account for every root id the driver query fetched. Non-null values in
// the slots of a branch that is not open are not checked.
type ReconstructionError struct {
	Detail string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("document reconstruction error: %s", e.Detail)
}

// DestinationWriteError wraps a failed push to the destination after the
// single retry has also failed. The checkpoint must not be advanced.
type DestinationWriteError struct {
	Cause error
}

func (e *DestinationWriteError) Error() string {
	return fmt.Sprintf("destination write failed: %v", e.Cause)
}

func (e *DestinationWriteError) Unwrap() error { return e.Cause }

// CheckpointWriteError indicates the checkpoint store could not be created,
// read or written, or held a malformed state value. When a Set fails after a
// batch was pushed, the next run re-emits that batch.
type CheckpointWriteError struct {
	Key   string
	Cause error
}

func (e *CheckpointWriteError) Error() string {
	return fmt.Sprintf("failed to write checkpoint key %q: %v", e.Key, e.Cause)
}

func (e *CheckpointWriteError) Unwrap() error { return e.Cause }
