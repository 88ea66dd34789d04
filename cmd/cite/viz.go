package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/citethreads/internal/viz"
)

var (
	vizOutput string
	vizLayout string
)

func init() {
	vizCmd.Flags().StringVarP(&vizOutput, "out", "o", "", "Output file (default: stdout)")
	vizCmd.Flags().StringVar(&vizLayout, "layout", "force", "Layout: force, circle, grid, concentric")
	rootCmd.AddCommand(vizCmd)
}

var vizCmd = &cobra.Command{
	Use:   "viz <project>",
	Short: "Generate an interactive HTML view of a project's graph",
	Long: `Generate a self-contained HTML page rendering a project's citation graph
with Cytoscape.js. Nodes are sized by citation count and edges coloured by
intent: SUPPORT green, OPPOSE red, NEUTRAL gray, unclassified light gray.

Examples:
  cite viz a1b2c3d4 -o graph.html
  cite viz a1b2c3d4 --layout circle > graph.html`,
	Args: cobra.ExactArgs(1),
	RunE: runViz,
}

func runViz(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := mustApp(ctx)
	defer a.Close()
	svc := a.mustService(ctx)

	p, g := mustProject(svc, args[0])

	opts := viz.DefaultOptions()
	opts.Title = p.Name
	opts.Layout = vizLayout
	html, err := viz.GenerateHTML(viz.FromGraph(g, viz.FindSeed(g, p.Config.Seed)), opts)
	if err != nil {
		exitWithError(ExitDataError, "generating visualization: %v", err)
	}

	if vizOutput == "" {
		fmt.Print(html)
		return nil
	}
	if err := os.WriteFile(vizOutput, []byte(html), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", vizOutput, err)
	}
	if humanOutput {
		fmt.Printf("Wrote visualization to %s\n", vizOutput)
		return nil
	}
	return outputJSON(StatusResponse{Status: "written", Path: vizOutput})
}
