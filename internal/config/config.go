// Package config provides configuration structures and loading for snowdoc.
package config

// Config represents the complete application configuration for one
// extraction target.
type Config struct {
	Source      DatabaseConfig    `yaml:"source" mapstructure:"source"`
	Replica     ReplicaConfig     `yaml:"replica" mapstructure:"replica"`
	RootTable   string            `yaml:"root_table" mapstructure:"root_table"`
	IncludeSet  []string          `yaml:"include_set" mapstructure:"include_set"`
	PruneEdges  []string          `yaml:"prune_edges" mapstructure:"prune_edges"`
	ChunkSize   int               `yaml:"chunk_size" mapstructure:"chunk_size"`
	Destination DestinationConfig `yaml:"destination" mapstructure:"destination"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint" mapstructure:"checkpoint"`
	Drift       DriftConfig       `yaml:"drift" mapstructure:"drift"`
	Safety      SafetyConfig      `yaml:"safety" mapstructure:"safety"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// ReplicaConfig is the read replica the Incremental Driver's lag guard
// polls between batches; the source connection itself is never read from a
// replica.
type ReplicaConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
}

// DestinationConfig addresses the warehouse destination. The file-backed
// Destination implementation shipped with this repo treats Dir as the
// NDJSON output directory and Table as the root extraction target's table
// name; a warehouse client implementing the same Destination interface
// would instead treat these as dataset/table coordinates.
type DestinationConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Table string `yaml:"table" mapstructure:"table"`
}

// CheckpointConfig names the key namespace the checkpoint store uses for
// this extraction target's "<prefix>.state" and "<prefix>.sql" keys.
type CheckpointConfig struct {
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// DriftConfig controls whether a changed schema fingerprint halts the
// driver or is promoted (with a logged warning).
type DriftConfig struct {
	AllowOverride bool `yaml:"allow_override" mapstructure:"allow_override"`
}

// SafetyConfig configures the replica lag guard between batches and the
// per-statement timeout on source queries.
type SafetyConfig struct {
	LagThreshold     int `yaml:"lag_threshold" mapstructure:"lag_threshold"`
	CheckInterval    int `yaml:"check_interval" mapstructure:"check_interval"`
	StatementTimeout int `yaml:"statement_timeout" mapstructure:"statement_timeout"` // seconds, 0 disables
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Replica: ReplicaConfig{
			Enabled: false,
			Port:    3306,
		},
		RootTable: "job",
		ChunkSize: 1000,
		Destination: DestinationConfig{
			Table: "job",
		},
		Checkpoint: CheckpointConfig{
			Prefix: "snowdoc",
		},
		Safety: SafetyConfig{
			LagThreshold:     10,
			CheckInterval:    5,
			StatementTimeout: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// ApplyOverrides applies CLI flag overrides to the configuration. Only
// non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, chunkSize int, allowDriftOverride bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if chunkSize > 0 {
		c.ChunkSize = chunkSize
	}
	if allowDriftOverride {
		c.Drift.AllowOverride = true
	}
}
