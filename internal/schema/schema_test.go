package schema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ci-telemetry/snowdoc/internal/logger"
)

func TestIntrospect_TablesColumnsAndKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("job").
			AddRow("job_log"))

	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "column_type", "is_nullable", "ordinal_position"}).
			AddRow("job", "id", "bigint", "NO", 1).
			AddRow("job", "last_modified", "datetime", "NO", 2).
			AddRow("job_log", "id", "bigint", "NO", 1).
			AddRow("job_log", "job_id", "bigint", "NO", 2))

	mock.ExpectQuery("constraint_name = 'PRIMARY'").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("job", "id").
			AddRow("job_log", "id"))

	mock.ExpectQuery("referenced_table_name IS NOT NULL").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "table_name", "column_name", "referenced_table_name", "referenced_column_name"}).
			AddRow("fk_job_log_job", "job_log", "job_id", "job", "id"))

	in := NewIntrospector(db, "ci", logger.NewDefault())
	sc, err := in.Introspect(context.Background())
	require.NoError(t, err)

	require.Len(t, sc.Tables, 2)

	job, ok := sc.Table("job")
	require.True(t, ok)
	require.Equal(t, "id", job.PrimaryKey)
	require.Len(t, job.Columns, 2)
	require.Equal(t, "id", job.Columns[0].Name)

	jobLog, ok := sc.Table("job_log")
	require.True(t, ok)
	require.Len(t, jobLog.ForeignKeys, 1)
	require.Equal(t, "job", jobLog.ForeignKeys[0].ToTable)
	require.Equal(t, "job_id", jobLog.ForeignKeys[0].FromColumn)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospect_QueryErrorWrapsSchemaUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.tables").WillReturnError(sqlmock.ErrCancelled)

	in := NewIntrospector(db, "ci", logger.NewDefault())
	_, err = in.Introspect(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "schema unavailable")
}

func TestIntrospect_CompositePrimaryKeyOmitted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("job_tag"))
	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "column_type", "is_nullable", "ordinal_position"}).
			AddRow("job_tag", "job_id", "bigint", "NO", 1).
			AddRow("job_tag", "tag_id", "bigint", "NO", 2))
	mock.ExpectQuery("constraint_name = 'PRIMARY'").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("job_tag", "job_id").
			AddRow("job_tag", "tag_id"))
	mock.ExpectQuery("referenced_table_name IS NOT NULL").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "table_name", "column_name", "referenced_table_name", "referenced_column_name"}))

	in := NewIntrospector(db, "ci", logger.NewDefault())
	sc, err := in.Introspect(context.Background())
	require.NoError(t, err)

	tbl, _ := sc.Table("job_tag")
	require.Empty(t, tbl.PrimaryKey)
}
