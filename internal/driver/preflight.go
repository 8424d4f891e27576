package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/relgraph"
)

// PreflightError is a failed startup safety check.
type PreflightError struct {
	Check   string
	Message string
	Tables  []string
}

func (e *PreflightError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// Preflight runs the startup checks the incremental driver needs before its
// first loop iteration: every table the relation graph reached actually
// exists in the source, and the destination connection is live.
type Preflight struct {
	source   *sql.DB
	database string
	graph    *relgraph.Graph
	logger   *logger.Logger
}

// NewPreflight creates a Preflight bound to the source connection the
// relation graph was built from.
func NewPreflight(source *sql.DB, database string, g *relgraph.Graph, log *logger.Logger) *Preflight {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Preflight{source: source, database: database, graph: g, logger: log}
}

// Run executes every check. destPing is called to confirm the destination
// is reachable; FileDestination callers may pass a no-op.
func (p *Preflight) Run(ctx context.Context, destPing func(context.Context) error) error {
	p.logger.Info("running preflight checks")

	tables := p.graphTables()
	if err := p.validateTablesExist(ctx, tables); err != nil {
		return err
	}

	if destPing != nil {
		if err := destPing(ctx); err != nil {
			return &PreflightError{Check: "DESTINATION_CONNECTIVITY", Message: err.Error()}
		}
	}

	p.logger.Info("preflight checks passed")
	return nil
}

func (p *Preflight) graphTables() []string {
	var tables []string
	p.graph.Walk(func(n *relgraph.Node) { tables = append(tables, n.Table) })
	return tables
}

// validateTablesExist confirms every table the relation graph walked to
// still exists in the source's information schema — the graph was built
// from a prior introspection and could be stale by the time the driver runs.
func (p *Preflight) validateTablesExist(ctx context.Context, tables []string) error {
	if len(tables) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tables)), ",")
	query := fmt.Sprintf(
		"SELECT table_name FROM information_schema.tables WHERE table_schema = ? AND table_name IN (%s)",
		placeholders,
	)

	args := make([]any, len(tables)+1)
	args[0] = p.database
	for i, t := range tables {
		args[i+1] = t
	}

	rows, err := p.source.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query table existence: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(tables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, t := range tables {
		if !existing[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return &PreflightError{Check: "TABLE_EXISTENCE_CHECK", Message: "tables not found in source schema", Tables: missing}
	}
	return nil
}
