package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple table name", input: "job", expected: "`job`"},
		{name: "with underscore", input: "failure_line", expected: "`failure_line`"},
		{name: "mixed case", input: "JobLog", expected: "`JobLog`"},
		{name: "numeric characters", input: "job2", expected: "`job2`"},
		{name: "single backtick doubled", input: "my`table", expected: "`my``table`"},
		{name: "backtick at start", input: "`table", expected: "```table`"},
		{name: "empty string", input: "", expected: "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "t1.`id`", Qualify("t1", "id"))
	assert.Equal(t, "t2.`job_id`", Qualify("t2", "job_id"))
	assert.Equal(t, "t0.`my``col`", Qualify("t0", "my`col"))
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"job", "job_log", "JobLog", "table123", "___", "CUSTOMERS"}
	for _, name := range valid {
		assert.True(t, IsValidIdentifier(name), name)
	}

	invalid := []string{
		"",
		"my table",
		"my-table",
		"db.table",
		"my`table",
		"job; DROP TABLE job--",
		"table$name",
		"table*",
	}
	for _, name := range invalid {
		assert.False(t, IsValidIdentifier(name), name)
	}
}

func TestQuoteIdentifierSafe(t *testing.T) {
	result, err := QuoteIdentifierSafe("job_log")
	require.NoError(t, err)
	assert.Equal(t, "`job_log`", result)

	result, err = QuoteIdentifierSafe("job; DROP TABLE job--")
	assert.Error(t, err)
	assert.Empty(t, result)
	assert.IsType(t, &InvalidIdentifierError{}, err)
	assert.Contains(t, err.Error(), "invalid identifier")
}
