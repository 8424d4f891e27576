// Package verifier confirms a batch of reconstructed documents accounts for
// every root row the driver query fetched.
package verifier

import (
	"fmt"

	"github.com/ci-telemetry/snowdoc/internal/logger"
)

// Result is the outcome of verifying a single batch.
type Result struct {
	RootTable     string
	ExpectedCount int
	ActualCount   int
	MissingIDs    []any
	Match         bool
}

// Verifier compares the number of documents a batch emitted against the set
// of root ids the driver query fetched for that batch. A document goes
// missing only if its root row vanished between the driver's id query and
// the extraction query that followed it.
type Verifier struct {
	rootTable string
	logger    *logger.Logger
}

// New creates a Verifier for the given root table.
func New(rootTable string, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Verifier{rootTable: rootTable, logger: log}
}

// Verify compares fetchedIDs (the root ids the driver query returned for
// this batch) against emittedIDs (the root ids the reconstructor actually
// closed out a document for). Any id present in fetchedIDs but absent from
// emittedIDs is reported as missing.
func (v *Verifier) Verify(fetchedIDs, emittedIDs []any) Result {
	emitted := make(map[any]bool, len(emittedIDs))
	for _, id := range emittedIDs {
		emitted[id] = true
	}

	var missing []any
	for _, id := range fetchedIDs {
		if !emitted[id] {
			missing = append(missing, id)
		}
	}

	res := Result{
		RootTable:     v.rootTable,
		ExpectedCount: len(fetchedIDs),
		ActualCount:   len(emittedIDs),
		MissingIDs:    missing,
		Match:         len(missing) == 0,
	}

	if !res.Match {
		v.logger.Warnw("batch verification mismatch",
			"table", v.rootTable,
			"expected", res.ExpectedCount,
			"actual", res.ActualCount,
			"missing", res.MissingIDs,
		)
	}

	return res
}

// Error renders a non-matching Result as an error, or nil if it matched.
func (r Result) Error() error {
	if r.Match {
		return nil
	}
	return fmt.Errorf("verification failed for %s: expected %d documents, got %d (missing ids: %v)",
		r.RootTable, r.ExpectedCount, r.ActualCount, r.MissingIDs)
}
