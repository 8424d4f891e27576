// Package schema introspects a MySQL information schema into a typed,
// deterministically-ordered Table/ForeignKey graph.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/snowerr"
)

// Column is one column of a Table.
type Column struct {
	Name     string
	SQLType  string
	Nullable bool
	Ordinal  int
}

// ForeignKey is an outbound reference from one table to another. Only
// single-column references are modeled: each column of a composite foreign
// key is read as a separate ForeignKey carrying the same constraint Name.
type ForeignKey struct {
	Name       string
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
}

// Table is one table of the source schema, with columns in ordinal order
// and foreign keys in (from_table, from_column) order.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  string // empty if the table has no single-column PK
	ForeignKeys []ForeignKey
}

// Schema is the full introspected source schema.
type Schema struct {
	Tables map[string]*Table
}

// Table looks up a table by name, or returns (nil, false).
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// Introspector reads information_schema for one database.
type Introspector struct {
	db       *sql.DB
	database string
	logger   *logger.Logger
}

// NewIntrospector creates an Introspector bound to a live connection and the
// schema (database) name to introspect.
func NewIntrospector(db *sql.DB, database string, log *logger.Logger) *Introspector {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Introspector{db: db, database: database, logger: log}
}

// Introspect reads tables, columns, primary keys, and foreign keys and
// returns them in deterministic order: tables by name, columns by ordinal
// position, foreign keys by (from_table, from_column).
func (in *Introspector) Introspect(ctx context.Context) (*Schema, error) {
	tables, err := in.readTables(ctx)
	if err != nil {
		return nil, &snowerr.SchemaUnavailable{Database: in.database, Cause: err}
	}

	if err := in.readColumns(ctx, tables); err != nil {
		return nil, &snowerr.SchemaUnavailable{Database: in.database, Cause: err}
	}

	pks, err := in.readPrimaryKeys(ctx)
	if err != nil {
		return nil, &snowerr.SchemaUnavailable{Database: in.database, Cause: err}
	}
	for name, pk := range pks {
		if t, ok := tables[name]; ok {
			t.PrimaryKey = pk
		}
	}

	fks, err := in.readForeignKeys(ctx)
	if err != nil {
		return nil, &snowerr.SchemaUnavailable{Database: in.database, Cause: err}
	}
	for _, fk := range fks {
		if t, ok := tables[fk.FromTable]; ok {
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
	for _, t := range tables {
		sort.Slice(t.ForeignKeys, func(i, j int) bool {
			if t.ForeignKeys[i].FromTable != t.ForeignKeys[j].FromTable {
				return t.ForeignKeys[i].FromTable < t.ForeignKeys[j].FromTable
			}
			return t.ForeignKeys[i].FromColumn < t.ForeignKeys[j].FromColumn
		})
	}

	in.logger.Debugf("introspected %d tables from %q", len(tables), in.database)
	return &Schema{Tables: tables}, nil
}

func (in *Introspector) readTables(ctx context.Context) (map[string]*Table, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, in.database)
	if err != nil {
		return nil, fmt.Errorf("query information_schema.tables: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]*Table)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables[name] = &Table{Name: name}
	}
	return tables, rows.Err()
}

func (in *Introspector) readColumns(ctx context.Context, tables map[string]*Table) error {
	rows, err := in.db.QueryContext(ctx, `
		SELECT table_name, column_name, column_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ?
		ORDER BY table_name, ordinal_position`, in.database)
	if err != nil {
		return fmt.Errorf("query information_schema.columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, colType, nullable string
		var ordinal int
		if err := rows.Scan(&tableName, &colName, &colType, &nullable, &ordinal); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		t, ok := tables[tableName]
		if !ok {
			continue
		}
		t.Columns = append(t.Columns, Column{
			Name:     colName,
			SQLType:  colType,
			Nullable: nullable == "YES",
			Ordinal:  ordinal,
		})
	}
	return rows.Err()
}

// readPrimaryKeys returns table name -> single-column PK name. Tables whose
// primary key spans more than one column are omitted; such a table can
// still be a *one*-node leaf, but raises AmbiguousKey if it is ever needed
// as a many-node (see relgraph).
func (in *Introspector) readPrimaryKeys(ctx context.Context) (map[string]string, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT table_name, column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND constraint_name = 'PRIMARY'
		ORDER BY table_name, ordinal_position`, in.database)
	if err != nil {
		return nil, fmt.Errorf("query primary keys: %w", err)
	}
	defer rows.Close()

	cols := make(map[string][]string)
	for rows.Next() {
		var tableName, colName string
		if err := rows.Scan(&tableName, &colName); err != nil {
			return nil, fmt.Errorf("scan primary key column: %w", err)
		}
		cols[tableName] = append(cols[tableName], colName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pks := make(map[string]string, len(cols))
	for table, columns := range cols {
		if len(columns) == 1 {
			pks[table] = columns[0]
		}
	}
	return pks, nil
}

func (in *Introspector) readForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT constraint_name, table_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND referenced_table_name IS NOT NULL
		ORDER BY table_name, column_name`, in.database)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.FromTable, &fk.FromColumn, &fk.ToTable, &fk.ToColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
