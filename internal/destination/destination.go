// Package destination defines the warehouse contract the Typed Encoder's
// output is pushed through, and a file-backed implementation for local
// development and testing.
package destination

import (
	"context"

	"github.com/ci-telemetry/snowdoc/internal/encode"
)

// Schema describes the destination table the root extraction target is
// published into, as known at the point a batch is about to be pushed.
type Schema struct {
	Table   string
	Columns []ColumnDef
}

// ColumnDef is one column of the destination table, named and typed the way
// the Typed Encoder names and tags a scalar leaf.
type ColumnDef struct {
	Name string
	Tag  encode.Tag
}

// Destination is the warehouse contract: ensure the target table exists,
// extend it with a batch of encoded records, and widen it when the encoder
// observes columns the schema doesn't carry yet.
type Destination interface {
	// EnsureTable creates the destination table if it does not already
	// exist, matching schema.
	EnsureTable(ctx context.Context, schema Schema) error

	// Extend appends records to the destination table. Implementations
	// must be safe to call with a batch that has already been partially
	// applied by a prior, failed attempt (at-least-once delivery).
	Extend(ctx context.Context, records []*encode.Record) error

	// ApplySchemaUpdate widens the destination table with the columns the
	// encoder observed for the first time in the batch just encoded.
	ApplySchemaUpdate(ctx context.Context, adds []encode.ColumnUpdate) error
}
