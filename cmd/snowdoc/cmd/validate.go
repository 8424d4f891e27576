package cmd

import (
	"context"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/ci-telemetry/snowdoc/internal/config"
	"github.com/ci-telemetry/snowdoc/internal/database"
	"github.com/ci-telemetry/snowdoc/internal/driver"
	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/schema"
	"github.com/ci-telemetry/snowdoc/internal/sqlgen"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate loads the configuration, introspects the source schema,
builds the relation tree, and runs the driver's preflight checks, without
running the extraction loop or touching the checkpoint store.

Example:
  snowdoc validate --config snowdoc.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.ChunkSize, overrides.AllowDriftOverride)

	if err := cfg.Validate(); err != nil {
		fmt.Println(color.Red.Sprint("✗ configuration invalid"))
		return err
	}
	fmt.Println(color.Green.Sprint("✓ configuration valid"))

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	dbManager := database.NewManager(cfg)
	ctx := context.Background()

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	fmt.Println(color.Green.Sprint("✓ database connection"))

	fmt.Printf("\n--- Target: %s ---\n", cfg.RootTable)

	introspector := schema.NewIntrospector(dbManager.Source, cfg.Source.Database, log)
	sc, err := introspector.Introspect(ctx)
	if err != nil {
		fmt.Println(color.Red.Sprintf("✗ schema introspection failed: %v", err))
		return err
	}
	fmt.Println(color.Green.Sprintf("✓ schema introspection (%d tables)", len(sc.Tables)))

	builder := relgraph.NewBuilder(sc, cfg.RootTable, cfg.IncludeSet, cfg.PruneEdges)
	g, err := builder.Build()
	if err != nil {
		fmt.Println(color.Red.Sprintf("✗ relation tree build failed: %v", err))
		return err
	}
	fmt.Println(color.Green.Sprint("✓ relation tree built"))

	gen := sqlgen.New(g, sc)

	preflight := driver.NewPreflight(dbManager.Source, cfg.Source.Database, g, log)
	if err := preflight.Run(ctx, func(context.Context) error { return nil }); err != nil {
		fmt.Println(color.Red.Sprintf("✗ preflight checks failed: %v", err))
		return err
	}
	fmt.Println(color.Green.Sprint("✓ preflight checks"))

	fmt.Printf("\nfingerprint: %d bytes\n", len(gen.Fingerprint()))
	fmt.Println(color.Green.Sprint("\n=== Validation Complete ==="))
	return nil
}
