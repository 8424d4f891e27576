package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/ci-telemetry/snowdoc/internal/config"
	"github.com/ci-telemetry/snowdoc/internal/database"
	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/relgraph"
	"github.com/ci-telemetry/snowdoc/internal/schema"
	"github.com/ci-telemetry/snowdoc/internal/sqlgen"
)

// outputWriter is used for printing output, can be overridden in tests.
var outputWriter io.Writer = os.Stdout

func setOutputWriter(w io.Writer) { outputWriter = w }
func resetOutputWriter()          { outputWriter = os.Stdout }

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the relation tree and synthesized extraction SQL",
	Long: `Plan introspects the source schema, builds the relation tree, and
displays it as an ASCII tree alongside the synthesized UNION ALL extraction
SQL and its schema fingerprint.

Example:
  snowdoc plan --config snowdoc.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	builder := relgraph.NewBuilder(sc, cfg.RootTable, cfg.IncludeSet, cfg.PruneEdges)
	g, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build relation tree: %w", err)
	}

	gen := sqlgen.New(g, sc)

	printHeader("Relation Tree: " + cfg.RootTable)
	fmt.Fprintln(outputWriter)
	printSideBySide(renderTree(g), summaryLines(cfg, g), 4)

	fmt.Fprintln(outputWriter)
	printSection("Synthesized Extraction SQL")
	fmt.Fprintln(outputWriter, gen.Generate("SELECT <driver ids> AS id FROM ..."))

	fmt.Fprintln(outputWriter)
	printSection("Fingerprint")
	fp := gen.Fingerprint()
	fmt.Fprintf(outputWriter, "  %x\n", []byte(fp)[:min(16, len(fp))])

	return nil
}

// renderTree draws the relation tree as an ASCII tree, coloring many-nodes
// (child collections, including the root) green and one-nodes (inlined
// lookups) cyan.
func renderTree(g *relgraph.Graph) string {
	var sb strings.Builder
	var walk func(n *relgraph.Node, prefix string, last bool)
	walk = func(n *relgraph.Node, prefix string, last bool) {
		connector := "├── "
		nextPrefix := prefix + "│   "
		if last {
			connector = "└── "
			nextPrefix = prefix + "    "
		}

		label := n.Table
		if n.Label != "" && n.Label != n.Table {
			label = n.Label + " (" + n.Table + ")"
		}
		if n.Kind == relgraph.Many {
			label = color.Green.Sprint(label)
		} else {
			label = color.Cyan.Sprint(label)
		}
		if n.ForeignKey != "" {
			label += fmt.Sprintf(" [%s -> %s]", n.ForeignKey, n.ReferenceKey)
		}

		if n.Parent == nil {
			sb.WriteString(label + "\n")
		} else {
			sb.WriteString(prefix + connector + label + "\n")
		}

		for i, c := range n.Children {
			walk(c, nextPrefix, i == len(n.Children)-1)
		}
	}
	walk(g.Root, "", true)
	return sb.String()
}

func summaryLines(cfg *config.Config, g *relgraph.Graph) []string {
	many := g.ManyNodes()
	return []string{
		"[ Tree Summary ]",
		strings.Repeat("-", 16),
		fmt.Sprintf("Root Table:   %s", cfg.RootTable),
		fmt.Sprintf("Branches:     %d", len(many)),
		fmt.Sprintf("Chunk Size:   %d", cfg.ChunkSize),
		"",
		"[ Destination ]",
		strings.Repeat("-", 15),
		fmt.Sprintf("Table:        %s", cfg.Destination.Table),
		fmt.Sprintf("Dir:          %s", cfg.Destination.Dir),
	}
}

func printHeader(title string) {
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// printSideBySide prints two blocks of text side by side, aligning columns
// by visual (rune) width so box-drawing characters don't throw off padding.
func printSideBySide(leftContent string, rightLines []string, padding int) {
	leftLines := strings.Split(strings.TrimRight(leftContent, "\n"), "\n")

	leftWidth := 0
	for _, line := range leftLines {
		if w := runewidth.StringWidth(stripANSI(line)); w > leftWidth {
			leftWidth = w
		}
	}

	height := len(leftLines)
	if len(rightLines) > height {
		height = len(rightLines)
	}

	for i := 0; i < height; i++ {
		var left, right string
		if i < len(leftLines) {
			left = leftLines[i]
		}
		if i < len(rightLines) {
			right = rightLines[i]
		}

		fmt.Fprint(outputWriter, left)
		spaces := leftWidth - runewidth.StringWidth(stripANSI(left)) + padding
		if spaces > 0 {
			fmt.Fprint(outputWriter, strings.Repeat(" ", spaces))
		}
		fmt.Fprintln(outputWriter, right)
	}
}

// stripANSI removes color escape codes so width calculations count only
// visible runes; color.ClearCode is gookit/color's own stripper.
func stripANSI(s string) string {
	return color.ClearCode(s)
}
