package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ci-telemetry/snowdoc/internal/config"
	"github.com/ci-telemetry/snowdoc/internal/database"
	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/schema"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List every table the schema introspector discovers",
	Long: `Tables connects to the source database, introspects information_schema,
and prints every table the Schema Introspector discovered along with its
columns and foreign keys.

Example:
  snowdoc tables --config snowdoc.yaml`,
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.ChunkSize, overrides.AllowDriftOverride)

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

	introspector := schema.NewIntrospector(dbManager.Source, cfg.Source.Database, log)
	sc, err := introspector.Introspect(ctx)
	if err != nil {
		return fmt.Errorf("schema introspection failed: %w", err)
	}

	names := make([]string, 0, len(sc.Tables))
	for name := range sc.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		cmd.Printf("No tables found in database %q\n", cfg.Source.Database)
		return nil
	}

	cmd.Printf("Tables in %q:\n\n", cfg.Source.Database)

	for i, name := range names {
		t := sc.Tables[name]

		cmd.Printf("%d. %s\n", i+1, t.Name)
		if t.PrimaryKey != "" {
			cmd.Printf("   Primary Key: %s\n", t.PrimaryKey)
		} else {
			cmd.Printf("   Primary Key: (none / composite)\n")
		}

		cmd.Printf("   Columns:     %d\n", len(t.Columns))
		for _, c := range t.Columns {
			nullable := "NOT NULL"
			if c.Nullable {
				nullable = "NULL"
			}
			cmd.Printf("      - %s %s %s\n", c.Name, c.SQLType, nullable)
		}

		if len(t.ForeignKeys) > 0 {
			cmd.Printf("   Foreign Keys: %d\n", len(t.ForeignKeys))
			for _, fk := range t.ForeignKeys {
				cmd.Printf("      - %s.%s -> %s.%s\n", fk.FromTable, fk.FromColumn, fk.ToTable, fk.ToColumn)
			}
		}

		if i < len(names)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d table(s)\n", len(names))
	return nil
}
