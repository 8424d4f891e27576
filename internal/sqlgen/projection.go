// Package sqlgen synthesizes the canonical snowflake extraction SQL: one
// UNION ALL branch per many-reachable node, a shared global column
// projection, and an outer ORDER BY that interleaves rows in
// document-reconstruction order.
package sqlgen

import (
	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/schema"
)

// Slot is one position in the global column projection shared by every
// UNION branch.
type Slot struct {
	Index  int
	Node   *relgraph.Node
	Column schema.Column
}

// Projection is the full global slot assignment, built by a single
// depth-first walk of the relation tree.
type Projection struct {
	Slots []Slot
	Width int
}

// BuildProjection walks g depth-first and assigns each node's columns a
// contiguous block of global slot indices.
func BuildProjection(g *relgraph.Graph, sc *schema.Schema) *Projection {
	var slots []Slot
	idx := 0
	g.Walk(func(n *relgraph.Node) {
		table, ok := sc.Table(n.Table)
		if !ok {
			return
		}
		for _, col := range table.Columns {
			slots = append(slots, Slot{Index: idx, Node: n, Column: col})
			idx++
		}
	})
	return &Projection{Slots: slots, Width: idx}
}

// SlotsForNode returns the slots belonging to one node, in column order.
func (p *Projection) SlotsForNode(n *relgraph.Node) []Slot {
	var out []Slot
	for _, s := range p.Slots {
		if s.Node == n {
			out = append(out, s)
		}
	}
	return out
}

// PKSlot returns the slot index holding n's primary key column, or -1 if n
// has no usable primary key.
func (p *Projection) PKSlot(n *relgraph.Node) int {
	for _, s := range p.Slots {
		if s.Node == n && s.Column.Name == n.PrimaryKey {
			return s.Index
		}
	}
	return -1
}
