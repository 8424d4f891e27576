package relgraph

import (
	"sort"
	"strconv"

	"github.com/ci-telemetry/snowdoc/internal/schema"
	"github.com/ci-telemetry/snowdoc/internal/snowerr"
)

// Builder walks a schema.Schema breadth-first from a root table and
// classifies every reachable foreign key as a one-edge (outbound, lookup)
// or a many-edge (inbound, child collection).
type Builder struct {
	sc         *schema.Schema
	rootTable  string
	includeSet map[string]bool // empty means "no restriction"
	pruneEdges map[string]bool // "parent.label"
}

// NewBuilder creates a Builder for one extraction target.
func NewBuilder(sc *schema.Schema, rootTable string, includeSet, pruneEdges []string) *Builder {
	b := &Builder{
		sc:         sc,
		rootTable:  rootTable,
		includeSet: make(map[string]bool, len(includeSet)),
		pruneEdges: make(map[string]bool, len(pruneEdges)),
	}
	for _, t := range includeSet {
		b.includeSet[t] = true
	}
	for _, e := range pruneEdges {
		b.pruneEdges[e] = true
	}
	return b
}

func (b *Builder) allowed(table string) bool {
	if len(b.includeSet) == 0 {
		return true
	}
	return b.includeSet[table]
}

// Build produces the rooted relation tree.
func (b *Builder) Build() (*Graph, error) {
	rootTable, ok := b.sc.Table(b.rootTable)
	if !ok {
		return nil, &snowerr.UnreachableRoot{Table: b.rootTable}
	}

	root := &Node{
		Table:      rootTable.Name,
		PrimaryKey: rootTable.PrimaryKey,
		Kind:       Many,
	}
	if root.PrimaryKey == "" {
		return nil, &snowerr.AmbiguousKey{Table: root.Table}
	}

	queue := []*Node{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		children, err := b.expand(cur)
		if err != nil {
			return nil, err
		}
		cur.Children = children
		for _, c := range children {
			if c.Kind == Many {
				queue = append(queue, c)
			}
		}
	}

	return &Graph{Root: root}, nil
}

// ancestorTables returns the set of table names from n up to the root,
// inclusive, used for cycle-breaking.
func ancestorTables(n *Node) map[string]bool {
	out := make(map[string]bool)
	for cur := n; cur != nil; cur = cur.Parent {
		out[cur.Table] = true
	}
	return out
}

// expand computes the one- and many-children of n, applying the include
// set, prune rules, the cycle rule, and deterministic label assignment.
func (b *Builder) expand(n *Node) ([]*Node, error) {
	ancestors := ancestorTables(n)
	table, _ := b.sc.Table(n.Table)

	var oneChildren []*Node
	for _, fk := range table.ForeignKeys {
		if !b.allowed(fk.ToTable) || ancestors[fk.ToTable] {
			continue
		}
		target, ok := b.sc.Table(fk.ToTable)
		if !ok {
			continue
		}
		oneChildren = append(oneChildren, &Node{
			Table:        target.Name,
			PrimaryKey:   target.PrimaryKey,
			Kind:         One,
			ForeignKey:   fk.FromColumn,
			ReferenceKey: fk.ToColumn,
			Parent:       n,
		})
	}

	var manyChildren []*Node
	for _, t := range b.sortedTableNames() {
		if !b.allowed(t) || ancestors[t] {
			continue
		}
		childTable, _ := b.sc.Table(t)
		for _, fk := range childTable.ForeignKeys {
			if fk.ToTable != n.Table {
				continue
			}
			if childTable.PrimaryKey == "" {
				return nil, &snowerr.AmbiguousKey{Table: t}
			}
			manyChildren = append(manyChildren, &Node{
				Table:        childTable.Name,
				PrimaryKey:   childTable.PrimaryKey,
				Kind:         Many,
				ForeignKey:   fk.FromColumn,
				ReferenceKey: fk.ToColumn,
				Parent:       n,
			})
		}
	}

	assignLabels(n.Table, oneChildren)
	assignLabels(n.Table, manyChildren)

	all := append(oneChildren, manyChildren...)
	var kept []*Node
	for _, c := range all {
		if b.pruneEdges[n.Table+"."+c.Label] {
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// assignLabels gives each child a label equal to its table name, suffixing
// with "__2", "__3", ... (sorted by FK column name) when the same table is
// attached more than once from the same parent.
func assignLabels(parentTable string, children []*Node) {
	byTable := make(map[string][]*Node)
	for _, c := range children {
		byTable[c.Table] = append(byTable[c.Table], c)
	}
	for _, group := range byTable {
		sort.Slice(group, func(i, j int) bool { return group[i].ForeignKey < group[j].ForeignKey })
		for i, c := range group {
			if i == 0 {
				c.Label = c.Table
			} else {
				c.Label = c.Table + "__" + strconv.Itoa(i+1)
			}
		}
	}
}

func (b *Builder) sortedTableNames() []string {
	names := make([]string, 0, len(b.sc.Tables))
	for name := range b.sc.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
