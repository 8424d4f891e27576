package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile            string
	logLevel           string
	logFormat          string
	chunkSize          int
	allowDriftOverride bool
)

var rootCmd = &cobra.Command{
	Use:   "snowdoc",
	Short: "Incremental snowflake-to-document extractor",
	Long: `snowdoc incrementally extracts hierarchical documents out of a
normalized MySQL schema and pushes them to a columnar destination.

Features:
  - Schema introspection and automatic relation tree discovery
  - A single UNION ALL query synthesized from that tree
  - Streamed, path-keyed document reconstruction
  - Type-tagged encoding for schema-evolving warehouse destinations
  - Checkpointed, resumable incremental extraction
  - Schema drift detection between runs`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "snowdoc.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", 0,
		"Override the driver query's batch size (root rows per batch)")

	rootCmd.PersistentFlags().BoolVar(&allowDriftOverride, "force", false,
		"Accept a detected schema drift and adopt the new fingerprint")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings.
type CLIOverrides struct {
	LogLevel           string
	LogFormat          string
	ChunkSize          int
	AllowDriftOverride bool
}

// GetCLIOverrides returns the CLI flag override values.
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:           logLevel,
		LogFormat:          logFormat,
		ChunkSize:          chunkSize,
		AllowDriftOverride: allowDriftOverride,
	}
}
