// Package reconstruct folds the ordered flat row stream the SQL Generator
// produces back into nested per-root documents, by comparing each row's
// path-key vector against the previously seen one.
package reconstruct

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Document is a reconstructed record: scalar leaves, nested one-edge maps
// (*Document), and many-edge sequences ([]*Document), keyed in the order
// fields were first written. The Typed Encoder relies on that order being
// stable so re-encoding the same document is byte-identical.
type Document = orderedmap.OrderedMap[string, any]

func newDocument() *Document {
	return orderedmap.NewOrderedMap[string, any]()
}

// NullScalar marks a scalar leaf column whose value is SQL NULL, as
// distinct from an absent one-edge (a bare nil). The Typed Encoder uses
// this distinction to tag a null scalar with the field's previously
// observed type instead of leaving it untagged like a missing one-edge.
type NullScalar struct{}

func appendChild(parent *Document, label string, child *Document) {
	if existing, ok := parent.Get(label); ok {
		parent.Set(label, append(existing.([]*Document), child))
		return
	}
	parent.Set(label, []*Document{child})
}
