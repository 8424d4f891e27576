package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetConfigFile(t *testing.T) {
	original := cfgFile
	defer func() { cfgFile = original }()

	tests := []struct {
		name     string
		cfgValue string
		want     string
	}{
		{name: "empty config file", cfgValue: "", want: ""},
		{name: "custom config file", cfgValue: "/path/to/custom.yaml", want: "/path/to/custom.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.cfgValue
			assert.Equal(t, tt.want, GetConfigFile())
		})
	}
}

func TestGetCLIOverrides(t *testing.T) {
	originalLogLevel := logLevel
	originalLogFormat := logFormat
	originalChunkSize := chunkSize
	originalAllowDriftOverride := allowDriftOverride
	defer func() {
		logLevel = originalLogLevel
		logFormat = originalLogFormat
		chunkSize = originalChunkSize
		allowDriftOverride = originalAllowDriftOverride
	}()

	tests := []struct {
		name       string
		logLevel   string
		logFormat  string
		chunkSize  int
		allowDrift bool
		want       CLIOverrides
	}{
		{
			name: "empty overrides",
			want: CLIOverrides{},
		},
		{
			name:       "all overrides set",
			logLevel:   "debug",
			logFormat:  "json",
			chunkSize:  500,
			allowDrift: true,
			want: CLIOverrides{
				LogLevel:           "debug",
				LogFormat:          "json",
				ChunkSize:          500,
				AllowDriftOverride: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logLevel = tt.logLevel
			logFormat = tt.logFormat
			chunkSize = tt.chunkSize
			allowDriftOverride = tt.allowDrift

			assert.Equal(t, tt.want, GetCLIOverrides())
		})
	}
}

func TestRootCommandStructure(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "snowdoc", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, Version, rootCmd.Version)
}

func TestRootCommandPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	configFlag, err := flags.GetString("config")
	assert.NoError(t, err)
	assert.Equal(t, "snowdoc.yaml", configFlag)

	logLevelFlag, err := flags.GetString("log-level")
	assert.NoError(t, err)
	assert.Equal(t, "", logLevelFlag)

	chunkSizeFlag, err := flags.GetInt("chunk-size")
	assert.NoError(t, err)
	assert.Equal(t, 0, chunkSizeFlag)

	forceFlag, err := flags.GetBool("force")
	assert.NoError(t, err)
	assert.Equal(t, false, forceFlag)
}

func TestRootCommandSubcommands(t *testing.T) {
	commands := rootCmd.Commands()
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name()
	}

	expected := []string{"extract", "validate", "tables", "plan", "dry-run", "version"}
	for _, want := range expected {
		assert.Contains(t, names, want, "expected command %s not found", want)
	}
}

func TestExecuteExists(t *testing.T) {
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Commit)
}
