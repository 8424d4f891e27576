package sqlgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{Tables: map[string]*schema.Table{
		"job": {
			Name:       "job",
			PrimaryKey: "id",
			Columns:    []schema.Column{{Name: "id"}, {Name: "last_modified"}},
		},
		"job_log": {
			Name:       "job_log",
			PrimaryKey: "id",
			Columns:    []schema.Column{{Name: "id"}, {Name: "job_id"}, {Name: "name"}},
			ForeignKeys: []schema.ForeignKey{
				{FromTable: "job_log", FromColumn: "job_id", ToTable: "job", ToColumn: "id"},
			},
		},
	}}
}

func buildGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := relgraph.NewBuilder(testSchema(), "job", nil, nil).Build()
	require.NoError(t, err)
	return New(g, testSchema())
}

func TestGenerate_IsDeterministic(t *testing.T) {
	gen1 := buildGenerator(t)
	gen2 := buildGenerator(t)

	require.Equal(t, gen1.Generate("SELECT 0 AS id"), gen2.Generate("SELECT 0 AS id"))
}

func TestFingerprint_UsesLiteralDriver(t *testing.T) {
	gen := buildGenerator(t)
	require.Equal(t, gen.Generate("SELECT 0 AS id"), gen.Fingerprint())
}

func TestGenerate_ProjectsOneBranchPerManyNode(t *testing.T) {
	gen := buildGenerator(t)
	sql := gen.Generate("SELECT id FROM driver")

	// root branch + job_log branch
	require.Equal(t, 1, countOccurrences(sql, "UNION ALL"))
	require.Contains(t, sql, "FROM (SELECT id FROM driver) AS t0")
	require.Contains(t, sql, "JOIN `job_log`")
	require.Contains(t, sql, "ORDER BY")
}

func TestFingerprint_MatchesCanonicalReference(t *testing.T) {
	gen := buildGenerator(t)

	want := strings.Join([]string{
		"SELECT * FROM (",
		"SELECT t1.`id` AS c0, t1.`last_modified` AS c1, NULL AS c2, NULL AS c3, NULL AS c4",
		"FROM (SELECT 0 AS id) AS t0",
		"LEFT JOIN `job` AS t1 ON t1.`id` = t0.id",
		"UNION ALL",
		"SELECT t1.`id` AS c0, t1.`last_modified` AS c1, t2.`id` AS c2, t2.`job_id` AS c3, t2.`name` AS c4",
		"FROM (SELECT 0 AS id) AS t0",
		"LEFT JOIN `job` AS t1 ON t1.`id` = t0.id",
		"JOIN `job_log` AS t2 ON t2.`job_id` = t1.`id`",
		") AS u",
		"ORDER BY (c0 IS NOT NULL), c0, (c2 IS NOT NULL), c2",
	}, "\n")

	require.Equal(t, want, gen.Fingerprint())
}

func TestGenerate_LastSpineJoinIsInner(t *testing.T) {
	gen := buildGenerator(t)
	sql := gen.Generate("SELECT 0 AS id")
	require.Contains(t, sql, "JOIN `job_log` AS t2 ON t2.`job_id` = t1.`id`")
	require.NotContains(t, sql, "LEFT JOIN `job_log`")
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
