package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.Port != 3306 {
		t.Errorf("expected source port 3306, got %d", cfg.Source.Port)
	}
	if cfg.Source.TLS != "preferred" {
		t.Errorf("expected source TLS 'preferred', got %s", cfg.Source.TLS)
	}
	if cfg.Source.MaxConnections != 10 {
		t.Errorf("expected source max_connections 10, got %d", cfg.Source.MaxConnections)
	}

	if cfg.RootTable != "job" {
		t.Errorf("expected root_table 'job', got %s", cfg.RootTable)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("expected chunk_size 1000, got %d", cfg.ChunkSize)
	}

	if cfg.Replica.Enabled {
		t.Errorf("expected replica disabled by default")
	}

	if cfg.Safety.LagThreshold != 10 {
		t.Errorf("expected lag_threshold 10, got %d", cfg.Safety.LagThreshold)
	}

	if cfg.Checkpoint.Prefix != "snowdoc" {
		t.Errorf("expected checkpoint prefix 'snowdoc', got %s", cfg.Checkpoint.Prefix)
	}
	if cfg.Drift.AllowOverride {
		t.Errorf("expected drift override disabled by default")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected logging format 'json', got %s", cfg.Logging.Format)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()

	cfg.ApplyOverrides("debug", "text", 500, true)

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level override to apply, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected log format override to apply, got %s", cfg.Logging.Format)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("expected chunk size override to apply, got %d", cfg.ChunkSize)
	}
	if !cfg.Drift.AllowOverride {
		t.Errorf("expected drift override to apply")
	}
}

func TestApplyOverridesIgnoresZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	original := cfg.ChunkSize

	cfg.ApplyOverrides("", "", 0, false)

	if cfg.ChunkSize != original {
		t.Errorf("expected chunk size to stay %d, got %d", original, cfg.ChunkSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level to stay 'info', got %s", cfg.Logging.Level)
	}
}
