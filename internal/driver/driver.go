package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ci-telemetry/snowdoc/internal/checkpoint"
	"github.com/ci-telemetry/snowdoc/internal/destination"
	"github.com/ci-telemetry/snowdoc/internal/encode"
	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/reconstruct"
	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/snowerr"
	"github.com/ci-telemetry/snowdoc/internal/sqlgen"
	"github.com/ci-telemetry/snowdoc/internal/sqlutil"
	"github.com/ci-telemetry/snowdoc/internal/types"
	"github.com/ci-telemetry/snowdoc/internal/verifier"
)

// idColumn and lastModifiedColumn are the root table's canonical checkpoint
// columns; every root table this driver targets carries them.
const (
	idColumn           = "id"
	lastModifiedColumn = "last_modified"

	retryBackoff = time.Second
)

// BatchStats summarizes one completed batch.
type BatchStats struct {
	DocumentsEmitted int
	FinalState       checkpoint.State
}

// Driver owns the checkpointed resume position. Each iteration it waits out
// replica lag (when a lag guard is configured), composes the driver
// sub-query, substitutes it into the canonical extraction SQL,
// streams the result through the reconstructor, verifies the batch, pushes
// the encoded batch to the destination, and advances the checkpoint — until an iteration's driver sub-query comes back empty.
type Driver struct {
	source    *sql.DB
	rootTable string
	chunkSize int

	graph      *relgraph.Graph
	generator  *sqlgen.Generator
	checkpoint *checkpoint.Manager
	encoder    *encode.Encoder
	verifier   *verifier.Verifier
	lag        *LagMonitor

	dest      destination.Destination
	destTable string

	// StatementTimeout bounds each source statement (the driver id query and
	// the extraction stream). Zero disables the bound.
	StatementTimeout time.Duration

	logger *logger.Logger

	schemaEnsured bool
}

// New creates a Driver. chunkSize must be positive. lag may be nil when no
// replica lag guard is configured.
func New(
	source *sql.DB,
	rootTable string,
	chunkSize int,
	g *relgraph.Graph,
	gen *sqlgen.Generator,
	cp *checkpoint.Manager,
	dest destination.Destination,
	destTable string,
	lag *LagMonitor,
	log *logger.Logger,
) *Driver {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Driver{
		source:     source,
		rootTable:  rootTable,
		chunkSize:  chunkSize,
		graph:      g,
		generator:  gen,
		checkpoint: cp,
		encoder:    encode.New(),
		verifier:   verifier.New(rootTable, log),
		lag:        lag,
		dest:       dest,
		destTable:  destTable,
		logger:     log,
	}
}

// Run loops batches until the source is caught up, or ctx is cancelled
// between batches. Cancellation between batches is clean: the in-progress
// batch has already committed its checkpoint by the time Run observes it,
// so nothing is lost and nothing is replayed.
func (d *Driver) Run(ctx context.Context) error {
	state, err := d.checkpoint.Load(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Infow("extraction cancelled between batches", "last_modified", state.LastModified, "last_id", state.LastID)
			return nil
		default:
		}

		stats, err := d.runBatch(ctx, state)
		if err != nil {
			return err
		}
		if stats.DocumentsEmitted == 0 {
			d.logger.Infow("caught up", "last_modified", state.LastModified, "last_id", state.LastID)
			return nil
		}

		state = stats.FinalState
		d.logger.Infow("batch committed", "documents", stats.DocumentsEmitted, "last_modified", state.LastModified, "last_id", state.LastID)
	}
}

// runBatch executes exactly one loop iteration: compose the driver
// sub-query, generate and stream the full extraction SQL, verify the
// batch, push it, and advance the checkpoint.
func (d *Driver) runBatch(ctx context.Context, state checkpoint.State) (BatchStats, error) {
	if d.lag != nil {
		if err := d.lag.WaitForLag(ctx); err != nil {
			return BatchStats{}, fmt.Errorf("replica lag check failed: %w", err)
		}
	}

	var fetchedIDs []any
	var driverSQL string
	err := withRetryOnSourceError(ctx, func() error {
		ids, sqlText, err := d.composeDriverQuery(ctx, state)
		if err != nil {
			return err
		}
		fetchedIDs, driverSQL = ids, sqlText
		return nil
	})
	if err != nil {
		return BatchStats{}, err
	}

	if len(fetchedIDs) == 0 {
		return BatchStats{}, nil
	}

	extractionSQL := d.generator.Generate(driverSQL)

	var docs []*reconstruct.Document
	err = withRetryOnSourceError(ctx, func() error {
		built, err := d.extractBatch(ctx, extractionSQL)
		if err != nil {
			return err
		}
		docs = built
		return nil
	})
	if err != nil {
		return BatchStats{}, err
	}

	emittedIDs := make([]any, len(docs))
	for i, doc := range docs {
		id, _ := doc.Get(idColumn)
		emittedIDs[i] = id
	}

	result := d.verifier.Verify(fetchedIDs, emittedIDs)
	if verr := result.Error(); verr != nil {
		return BatchStats{}, &snowerr.ReconstructionError{Detail: verr.Error()}
	}

	if err := d.pushBatch(ctx, docs); err != nil {
		return BatchStats{}, err
	}

	nextState := state
	if len(docs) > 0 {
		nextState = stateFromDocument(docs[len(docs)-1])
	}
	if err := d.checkpoint.Save(ctx, nextState); err != nil {
		return BatchStats{}, err
	}

	return BatchStats{DocumentsEmitted: len(docs), FinalState: nextState}, nil
}

// stmtCtx bounds one source statement by StatementTimeout, if set.
func (d *Driver) stmtCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.StatementTimeout > 0 {
		return context.WithTimeout(ctx, d.StatementTimeout)
	}
	return ctx, func() {}
}

// composeDriverQuery builds the driver sub-query and runs it standalone to
// capture the pending root ids, both for the empty-batch check and for the
// post-reconstruction verification pass.
func (d *Driver) composeDriverQuery(ctx context.Context, state checkpoint.State) ([]any, string, error) {
	ctx, cancel := d.stmtCtx(ctx)
	defer cancel()

	table := sqlutil.QuoteIdentifier(d.rootTable)
	idCol := sqlutil.QuoteIdentifier(idColumn)
	lmCol := sqlutil.QuoteIdentifier(lastModifiedColumn)
	lmLiteral := state.LastModified.UTC().Format("2006-01-02 15:04:05.000000")

	driverSQL := fmt.Sprintf(
		"SELECT %s AS id FROM %s WHERE %s > '%s' OR (%s = '%s' AND %s > %d) ORDER BY %s, %s LIMIT %d",
		idCol, table,
		lmCol, lmLiteral,
		lmCol, lmLiteral, idCol, state.LastID,
		lmCol, idCol, d.chunkSize,
	)

	rows, err := d.source.QueryContext(ctx, driverSQL)
	if err != nil {
		return nil, "", &snowerr.SourceTimeout{Statement: "driver id query", Cause: err}
	}
	defer rows.Close()

	var ids []any
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, "", &snowerr.SourceTimeout{Statement: "driver id scan", Cause: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, "", &snowerr.SourceTimeout{Statement: "driver id iteration", Cause: err}
	}

	return ids, driverSQL, nil
}

// extractBatch runs the full extraction SQL inside a read-only source
// transaction, held open for the life of the batch so the stream reads a
// consistent snapshot, and folds the streamed rows back into documents.
func (d *Driver) extractBatch(ctx context.Context, extractionSQL string) ([]*reconstruct.Document, error) {
	ctx, cancel := d.stmtCtx(ctx)
	defer cancel()

	tx, err := d.source.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &snowerr.SourceTimeout{Statement: "begin extraction transaction", Cause: err}
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, extractionSQL)
	if err != nil {
		return nil, &snowerr.SourceTimeout{Statement: "extraction query", Cause: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &snowerr.SourceTimeout{Statement: "extraction query columns", Cause: err}
	}

	var docs []*reconstruct.Document
	sink := func(doc *reconstruct.Document) { docs = append(docs, doc) }
	rec := reconstruct.New(d.graph, d.generator.Projection(), sink)

	values := make([]any, len(cols))
	scanDest := make([]any, len(cols))
	for i := range values {
		scanDest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, &snowerr.SourceTimeout{Statement: "extraction row scan", Cause: err}
		}
		row := make(reconstruct.Row, len(values))
		copy(row, values)
		if err := rec.Feed(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &snowerr.SourceTimeout{Statement: "extraction row iteration", Cause: err}
	}
	rec.Close()

	if err := tx.Commit(); err != nil {
		return nil, &snowerr.SourceTimeout{Statement: "commit extraction transaction", Cause: err}
	}

	return docs, nil
}

// pushBatch encodes docs, widens the destination schema, and appends the
// batch, retrying the push once on failure before surfacing a
// DestinationWriteError.
func (d *Driver) pushBatch(ctx context.Context, docs []*reconstruct.Document) error {
	if !d.schemaEnsured {
		if err := d.dest.EnsureTable(ctx, destination.Schema{Table: d.destTable}); err != nil {
			return &snowerr.DestinationWriteError{Cause: err}
		}
		d.schemaEnsured = true
	}

	records := make([]*encode.Record, len(docs))
	var adds []encode.ColumnUpdate
	for i, doc := range docs {
		rec, colAdds := d.encoder.Encode(doc)
		records[i] = rec
		adds = append(adds, colAdds...)
	}

	push := func() error {
		if len(adds) > 0 {
			if err := d.dest.ApplySchemaUpdate(ctx, adds); err != nil {
				return err
			}
		}
		return d.dest.Extend(ctx, records)
	}

	if err := push(); err != nil {
		d.logger.Warnw("destination write failed, retrying once", "error", err)
		if err := push(); err != nil {
			return &snowerr.DestinationWriteError{Cause: err}
		}
	}

	return nil
}

// stateFromDocument reads the checkpoint columns off the last document a
// batch emitted. Documents are emitted in strictly increasing
// (last_modified, id) order, so the final one in a batch is always the new
// high-water mark.
func stateFromDocument(doc *reconstruct.Document) checkpoint.State {
	var st checkpoint.State
	if v, ok := doc.Get(idColumn); ok {
		st.LastID = types.ToInt64(v)
	}
	if v, ok := doc.Get(lastModifiedColumn); ok {
		if t, ok := v.(time.Time); ok {
			st.LastModified = t
		}
	}
	return st
}

// withRetryOnSourceError retries fn once, after a fixed backoff, when it
// fails with a snowerr.SourceTimeout; transient source errors get exactly
// one retry before turning fatal.
func withRetryOnSourceError(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	var timeoutErr *snowerr.SourceTimeout
	if !errors.As(err, &timeoutErr) {
		return err
	}

	select {
	case <-ctx.Done():
		return err
	case <-time.After(retryBackoff):
	}

	return fn()
}
