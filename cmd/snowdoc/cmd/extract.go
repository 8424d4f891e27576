package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ci-telemetry/snowdoc/internal/checkpoint"
	"github.com/ci-telemetry/snowdoc/internal/config"
	"github.com/ci-telemetry/snowdoc/internal/database"
	"github.com/ci-telemetry/snowdoc/internal/destination"
	"github.com/ci-telemetry/snowdoc/internal/driver"
	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/schema"
	"github.com/ci-telemetry/snowdoc/internal/sqlgen"
)

var extractRestart bool

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the incremental extraction loop",
	Long: `Extract introspects the source schema, builds the relation tree,
synthesizes the extraction query, and runs the checkpointed incremental
driver until the source is caught up.

The loop is:
  1. Introspect the source schema and build the relation tree
  2. Compare its fingerprint against the stored one (schema drift guard)
  3. Compose the driver sub-query and the full extraction SQL
  4. Stream rows, reconstruct documents, encode and push them
  5. Verify the batch, advance the checkpoint, repeat

Example:
  snowdoc extract --config snowdoc.yaml`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractRestart, "restart", false,
		"Reset the checkpoint to the beginning before running")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.ChunkSize, overrides.AllowDriftOverride)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Infow("starting extraction", "root_table", cfg.RootTable, "config", configFile)

	dbManager := database.NewManager(cfg)

	ctx := database.SetupSignalHandlerWithCallback(func(os.Signal) {
		log.Warn("received shutdown signal - completing current batch...")
	})

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	lock := checkpoint.NewAdvisoryLock(dbManager.Source, cfg.Checkpoint.Prefix)
	if err := lock.WithLock(ctx, checkpoint.TimeoutShort, func() error {
		return runExtractLocked(ctx, cfg, dbManager, log)
	}); err != nil {
		if errors.Is(err, checkpoint.ErrLockTimeout) {
			return fmt.Errorf("extraction target %q is already running on another instance", cfg.Checkpoint.Prefix)
		}
		return err
	}

	return nil
}

func runExtractLocked(ctx context.Context, cfg *config.Config, dbManager *database.Manager, log *logger.Logger) error {
	introspector := schema.NewIntrospector(dbManager.Source, cfg.Source.Database, log)
	sc, err := introspector.Introspect(ctx)
	if err != nil {
		return err
	}

	builder := relgraph.NewBuilder(sc, cfg.RootTable, cfg.IncludeSet, cfg.PruneEdges)
	g, err := builder.Build()
	if err != nil {
		return err
	}

	gen := sqlgen.New(g, sc)

	store := checkpoint.NewMySQLStore(dbManager.Source, log)
	if err := store.EnsureTable(ctx); err != nil {
		return err
	}
	cp := checkpoint.NewManager(store, cfg.Checkpoint.Prefix, log)

	if err := cp.CheckDrift(ctx, gen.Fingerprint(), cfg.Drift.AllowOverride); err != nil {
		return err
	}

	if extractRestart {
		log.Warnw("resetting checkpoint to the beginning", "prefix", cfg.Checkpoint.Prefix)
		if err := cp.Reset(ctx); err != nil {
			return err
		}
	}

	dest, err := destination.NewFileDestination(cfg.Destination.Dir, log)
	if err != nil {
		return err
	}
	defer dest.Close()

	preflight := driver.NewPreflight(dbManager.Source, cfg.Source.Database, g, log)
	if err := preflight.Run(ctx, func(context.Context) error { return nil }); err != nil {
		return err
	}

	lagMonitor := driver.NewLagMonitor(dbManager.Replica, cfg.Safety, log)
	if err := lagMonitor.WaitForLag(ctx); err != nil {
		return fmt.Errorf("replica lag check failed: %w", err)
	}

	drv := driver.New(dbManager.Source, cfg.RootTable, cfg.ChunkSize, g, gen, cp, dest, cfg.Destination.Table, lagMonitor, log)
	drv.StatementTimeout = time.Duration(cfg.Safety.StatementTimeout) * time.Second

	if err := drv.Run(ctx); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Println("\n=== Extraction Complete ===")
	fmt.Printf("Root table: %s\n", cfg.RootTable)
	fmt.Printf("Destination table: %s\n", cfg.Destination.Table)

	return nil
}
