package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/schema"
	"github.com/ci-telemetry/snowdoc/internal/sqlutil"
)

// Generator produces the canonical UNION ALL extraction SQL for one
// relation tree. A Generator is built once per process and is immutable
// thereafter; its Fingerprint is the schema-drift detector.
type Generator struct {
	graph      *relgraph.Graph
	projection *Projection
	aliases    map[*relgraph.Node]string
}

// New builds a Generator from a relation tree and the schema it was built
// from. Table aliases (t1..tN) and column slots (c0..cW-1) are assigned
// once here, in the same depth-first order, so they are stable across runs
// for an identical schema.
func New(g *relgraph.Graph, sc *schema.Schema) *Generator {
	return &Generator{
		graph:      g,
		projection: BuildProjection(g, sc),
		aliases:    assignAliases(g),
	}
}

// Projection exposes the global slot assignment for the Document
// Reconstructor.
func (gen *Generator) Projection() *Projection { return gen.projection }

func assignAliases(g *relgraph.Graph) map[*relgraph.Node]string {
	aliases := make(map[*relgraph.Node]string)
	i := 1
	g.Walk(func(n *relgraph.Node) {
		aliases[n] = "t" + strconv.Itoa(i)
		i++
	})
	return aliases
}

func colAlias(i int) string { return "c" + strconv.Itoa(i) }

// Generate renders the full extraction SQL for one batch, substituting
// driverSQL as the opaque root-id sub-query. driverSQL is inserted
// verbatim; the caller is responsible for its shape (it must project a
// single `id` column).
func (gen *Generator) Generate(driverSQL string) string {
	branches := gen.graph.ManyNodes()

	branchSQL := make([]string, len(branches))
	for i, b := range branches {
		branchSQL[i] = gen.branchSelect(b, driverSQL)
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM (\n")
	b.WriteString(strings.Join(branchSQL, "\nUNION ALL\n"))
	b.WriteString("\n) AS u\nORDER BY ")
	b.WriteString(gen.orderByClause(branches))
	return b.String()
}

// Fingerprint is the CanonicalSQL rendered with a trivial driver
// (`SELECT 0 AS id`). Two schemas produce the same Fingerprint bytes if and
// only if they would generate identical extraction SQL for every batch.
func (gen *Generator) Fingerprint() string {
	return gen.Generate("SELECT 0 AS id")
}

// branchSelect renders one UNION branch for the many-node (or root) b.
func (gen *Generator) branchSelect(b *relgraph.Node, driverSQL string) string {
	spine := b.Spine()
	included := gen.includedNodes(spine)

	exprs := make([]string, gen.projection.Width)
	for _, s := range gen.projection.Slots {
		if included[s.Node] {
			exprs[s.Index] = fmt.Sprintf("%s AS %s", sqlutil.Qualify(gen.aliases[s.Node], s.Column.Name), colAlias(s.Index))
		} else {
			exprs[s.Index] = fmt.Sprintf("NULL AS %s", colAlias(s.Index))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(exprs, ", "))
	sb.WriteString(fmt.Sprintf("\nFROM (%s) AS t0", driverSQL))
	for _, join := range gen.joinsForBranch(spine) {
		sb.WriteString("\n")
		sb.WriteString(join)
	}
	return sb.String()
}

// includedNodes is the set of nodes whose columns this branch projects:
// the spine plus every spine node's inlined one-subtree.
func (gen *Generator) includedNodes(spine []*relgraph.Node) map[*relgraph.Node]bool {
	included := make(map[*relgraph.Node]bool)
	for _, n := range spine {
		included[n] = true
		for _, one := range n.OneSubtree() {
			included[one] = true
		}
	}
	return included
}

// joinsForBranch builds the FROM-clause joins for one branch: the fixed
// root join, the spine's inner chain of many-edges (LEFT except the final,
// inner, segment), and every spine node's inlined one-subtree (always
// LEFT, since a lookup may be absent).
func (gen *Generator) joinsForBranch(spine []*relgraph.Node) []string {
	var joins []string

	root := spine[0]
	rootAlias := gen.aliases[root]
	joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s = t0.id",
		sqlutil.QuoteIdentifier(root.Table), rootAlias, sqlutil.Qualify(rootAlias, root.PrimaryKey)))

	for i := 1; i < len(spine); i++ {
		cur := spine[i]
		kind := "LEFT JOIN"
		if i == len(spine)-1 {
			kind = "JOIN"
		}
		joins = append(joins, fmt.Sprintf("%s %s AS %s ON %s = %s",
			kind, sqlutil.QuoteIdentifier(cur.Table), gen.aliases[cur],
			sqlutil.Qualify(gen.aliases[cur], cur.ForeignKey),
			sqlutil.Qualify(gen.aliases[cur.Parent], cur.ReferenceKey)))
	}

	for _, sp := range spine {
		for _, one := range sp.OneSubtree() {
			joins = append(joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s",
				sqlutil.QuoteIdentifier(one.Table), gen.aliases[one],
				sqlutil.Qualify(gen.aliases[one], one.ReferenceKey),
				sqlutil.Qualify(gen.aliases[one.Parent], one.ForeignKey)))
		}
	}

	return joins
}

// orderByClause builds the outer ORDER BY: for each many-node (including
// root) in tree pre-order, the tuple (slot IS NOT NULL, slot). MySQL sorts
// NULL lowest by default, so this alone produces the intended interleave.
func (gen *Generator) orderByClause(branches []*relgraph.Node) string {
	var terms []string
	for _, b := range branches {
		slot := gen.projection.PKSlot(b)
		if slot < 0 {
			continue
		}
		c := colAlias(slot)
		terms = append(terms, fmt.Sprintf("(%s IS NOT NULL), %s", c, c))
	}
	return strings.Join(terms, ", ")
}
