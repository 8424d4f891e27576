package reconstruct

import (
	"fmt"

	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/snowerr"
	"github.com/ci-telemetry/snowdoc/internal/sqlgen"
)

// Row is one tuple from the ordered extraction result set, indexed by the
// Projection's global slot numbers.
type Row []any

// Sink receives one completed root document at a time, in the order their
// root rows were seen.
type Sink func(*Document)

// Reconstructor folds the row stream produced by a sqlgen.Generator back
// into nested documents. It is stateful and single-pass: rows must arrive
// in the order the generator's ORDER BY clause guarantees, and each
// Reconstructor instance is good for exactly one ordered stream.
type Reconstructor struct {
	proj *sqlgen.Projection
	many []*relgraph.Node // pre-order, index 0 is the root

	// parentIdx[i] is the index in many of node i's nearest many ancestor.
	// Sibling many-branches share a parent, so this is not simply i-1.
	parentIdx []int

	cursor []any       // last row's path-key value per many-node
	open   []*Document // currently open document per many-node
	sink   Sink
}

// New creates a Reconstructor for one relation tree. sink is invoked once
// per completed root document, including the final one on Close.
func New(g *relgraph.Graph, proj *sqlgen.Projection, sink Sink) *Reconstructor {
	many := g.ManyNodes()
	indexOf := make(map[*relgraph.Node]int, len(many))
	for i, n := range many {
		indexOf[n] = i
	}
	parentIdx := make([]int, len(many))
	for i, n := range many {
		if i == 0 {
			continue
		}
		anc := n.Parent
		for anc.Kind != relgraph.Many && anc.Parent != nil {
			anc = anc.Parent
		}
		parentIdx[i] = indexOf[anc]
	}
	return &Reconstructor{
		proj:      proj,
		many:      many,
		parentIdx: parentIdx,
		cursor:    make([]any, len(many)),
		open:      make([]*Document, len(many)),
		sink:      sink,
	}
}

// Feed consumes one row. Rows for a given root id may arrive interleaved
// from any branch, but within the stream as a whole they must be ordered by
// the path-key vector exactly as the generator's ORDER BY does.
func (r *Reconstructor) Feed(row Row) error {
	pkv := r.pathKey(row)
	if pkv[0] == nil {
		return &snowerr.ReconstructionError{Detail: "root primary key slot is null"}
	}

	divergence := len(r.many)
	for i := range r.many {
		if pkv[i] != r.cursor[i] {
			divergence = i
			break
		}
	}

	for i := divergence; i < len(r.many); i++ {
		if pkv[i] == nil {
			continue
		}
		if err := r.openGroup(i, pkv[i]); err != nil {
			return err
		}
	}

	for i, node := range r.many {
		if pkv[i] == nil {
			continue
		}
		if r.open[i] == nil {
			return &snowerr.ReconstructionError{
				Detail: fmt.Sprintf("row projects %s without an open ancestor group", node.Table),
			}
		}
		populateNode(r.open[i], r.proj, node, row)
	}

	copy(r.cursor, pkv)
	return nil
}

// Close flushes the last open root document, if any. It must be called
// exactly once, after the last row has been fed.
func (r *Reconstructor) Close() {
	if r.open[0] != nil {
		r.sink(r.open[0])
		r.open[0] = nil
	}
}

func (r *Reconstructor) pathKey(row Row) []any {
	pkv := make([]any, len(r.many))
	for i, node := range r.many {
		slot := r.proj.PKSlot(node)
		if slot < 0 || slot >= len(row) {
			continue
		}
		pkv[i] = normalizePK(row[slot])
	}
	return pkv
}

// normalizePK converts a []byte primary key value (go-sql-driver/mysql's
// representation for CHAR/VARCHAR columns) to a string so path-key vectors
// remain comparable with ==; a raw []byte is not comparable and panics.
func normalizePK(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// openGroup starts a fresh document at many-node index i, closing out
// whatever was open beneath it (and, at i == 0, emitting the previous root
// document to the sink).
func (r *Reconstructor) openGroup(i int, pk any) error {
	node := r.many[i]

	if i == 0 {
		if r.open[0] != nil {
			r.sink(r.open[0])
		}
		r.open[0] = newDocument()
	} else {
		parent := r.open[r.parentIdx[i]]
		if parent == nil {
			return &snowerr.ReconstructionError{
				Detail: fmt.Sprintf("row opens %s (pk=%v) without an open parent group", node.Table, pk),
			}
		}
		child := newDocument()
		appendChild(parent, node.Label, child)
		r.open[i] = child
	}

	for j := i + 1; j < len(r.many); j++ {
		r.open[j] = nil
	}
	return nil
}

// populateNode writes node's scalar columns and inlined one-subtree into
// doc from row. It is idempotent: every branch that includes node re-writes
// the same values, so repeated calls across a group's rows are harmless.
func populateNode(doc *Document, proj *sqlgen.Projection, node *relgraph.Node, row Row) {
	for _, slot := range proj.SlotsForNode(node) {
		if slot.Index < len(row) {
			if v := row[slot.Index]; v != nil {
				doc.Set(slot.Column.Name, v)
			} else {
				doc.Set(slot.Column.Name, NullScalar{})
			}
		}
	}

	for _, one := range node.Children {
		if one.Kind != relgraph.One {
			continue
		}
		pkSlot := proj.PKSlot(one)
		if pkSlot >= 0 && pkSlot < len(row) && row[pkSlot] == nil {
			doc.Set(one.Label, nil)
			continue
		}
		sub := newDocument()
		populateNode(sub, proj, one, row)
		doc.Set(one.Label, sub)
	}
}
