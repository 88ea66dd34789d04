package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matsen/citethreads/internal/graph"
	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/pdf"
	"github.com/matsen/citethreads/internal/project"
	"github.com/matsen/citethreads/internal/resolver"
)

var (
	buildPDF        string
	buildOut        string
	buildSave       bool
	buildName       string
	buildDepth      int
	buildDirection  string
	buildMaxPapers  int
	buildSource     string
	buildNoClassify bool
)

func init() {
	buildCmd.Flags().StringVar(&buildPDF, "pdf", "", "Seed from the DOI or arXiv ID found in a local PDF")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "Write the graph JSON to a file instead of stdout")
	buildCmd.Flags().BoolVar(&buildSave, "save", false, "Store the graph as a project")
	buildCmd.Flags().StringVar(&buildName, "name", "", "Project name (with --save)")
	buildCmd.Flags().IntVar(&buildDepth, "depth", 0, "Maximum BFS depth (default from config)")
	buildCmd.Flags().StringVar(&buildDirection, "direction", "", "forward, backward or both (default from config)")
	buildCmd.Flags().IntVar(&buildMaxPapers, "max-papers", 0, "Maximum papers in the graph (default from config)")
	buildCmd.Flags().StringVar(&buildSource, "source", resolver.DataSourceAuto, "Data source: auto or a single source name")
	buildCmd.Flags().BoolVar(&buildNoClassify, "no-classify", false, "Skip citation intent classification")
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build [seed]",
	Short: "Build a citation graph around a seed paper",
	Long: `Build a citation graph by walking references and citations breadth-first
from a seed paper, then classify each citation's intent.

The seed may be a namespaced ID (S2:..., OpenAlex:W..., DOI:..., arXiv:...),
a bare DOI or arXiv ID, or taken from a local PDF with --pdf.

Examples:
  cite build DOI:10.1038/nature14539
  cite build arXiv:1706.03762 --direction backward --max-papers 50
  cite build --pdf paper.pdf --save --name "Transformer lineage"
  cite build 10.1145/3292500.3330701 --no-classify -o graph.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	seed, err := resolveSeed(args, buildPDF)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := mustApp(ctx)
	defer a.Close()

	if buildSave {
		return runBuildSaved(ctx, a, seed)
	}

	direction := paper.Direction(buildDirection)
	if direction == "" {
		direction = paper.Direction(a.cfg.Build.Direction)
	}
	req := graph.Request{
		Seed:       seed,
		MaxDepth:   orDefault(buildDepth, a.cfg.Build.MaxDepth),
		Direction:  direction,
		Classify:   !buildNoClassify,
		MaxPapers:  orDefault(buildMaxPapers, a.cfg.Build.MaxPapers),
		DataSource: buildSource,
	}
	g, err := a.builder.Build(ctx, req, progressPrinter())
	switch {
	case errors.Is(err, graph.ErrInvalidRequest):
		exitWithError(ExitDataError, "%v", err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(os.Stderr, "interrupted, writing partial graph (%d papers)\n", len(g.Nodes))
	case err != nil:
		exitWithError(ExitError, "building graph: %v", err)
	}
	if len(g.Nodes) == 0 {
		exitWithError(ExitNotFound, "seed paper %s not found in any available source", seed)
	}

	return writeGraph(g, buildOut)
}

// runBuildSaved builds through the project service so the result is stored.
func runBuildSaved(ctx context.Context, a *app, seed string) error {
	svc := a.mustService(ctx)
	p, h, err := svc.Create(createRequest(seed))
	if err != nil {
		exitWithError(ExitDataError, "creating project: %v", err)
	}

	waitWithProgress(ctx, h)
	if err := h.Err(); err != nil && !errors.Is(err, context.Canceled) {
		exitWithError(ExitError, "building project %s: %v", p.ID, err)
	}

	saved, err := svc.Get(p.ID)
	if err != nil {
		exitWithError(ExitError, "reading project: %v", err)
	}
	if humanOutput {
		fmt.Printf("Project %s (%s): %s\n", saved.ID, saved.Name, saved.StatusMsg)
		return nil
	}
	return outputJSON(saved)
}

// resolveSeed picks the seed from the positional argument or a PDF.
func resolveSeed(args []string, pdfPath string) (string, error) {
	switch {
	case len(args) == 1 && pdfPath != "":
		return "", errors.New("give either a seed ID or --pdf, not both")
	case len(args) == 1:
		return args[0], nil
	case pdfPath != "":
		s, err := pdf.ExtractSeed(pdfPath)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", pdfPath, err)
		}
		return s.ID(), nil
	}
	return "", errors.New("a seed ID or --pdf is required")
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// progressPrinter reports build progress on stderr in human mode.
func progressPrinter() paper.ProgressFunc {
	if !humanOutput {
		return nil
	}
	return func(p paper.Progress) {
		if p.Total > 0 {
			fmt.Fprintf(os.Stderr, "[%s %d/%d] %s\n", p.Status, p.Progress, p.Total, p.Message)
			return
		}
		fmt.Fprintf(os.Stderr, "[%s] %s\n", p.Status, p.Message)
	}
}

// createRequest maps the build flags onto a project request.
func createRequest(seed string) project.CreateRequest {
	classify := !buildNoClassify
	return project.CreateRequest{
		SeedPaperID: seed,
		Name:        buildName,
		Depth:       buildDepth,
		Direction:   paper.Direction(buildDirection),
		MaxPapers:   buildMaxPapers,
		DataSource:  buildSource,
		Classify:    &classify,
	}
}

// writeGraph writes the graph as JSON to path, or to stdout when path is
// empty. Human mode prints a summary instead of JSON on stdout.
func writeGraph(g paper.GraphData, path string) error {
	if path == "" {
		if humanOutput {
			printGraphHuman(g)
			return nil
		}
		return outputJSON(g)
	}

	f, err := os.Create(path)
	if err != nil {
		exitWithError(ExitError, "creating %s: %v", path, err)
	}
	if err := encodeJSON(f, g); err != nil {
		f.Close()
		exitWithError(ExitError, "writing %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		exitWithError(ExitError, "closing %s: %v", path, err)
	}

	if humanOutput {
		fmt.Printf("Wrote %d papers and %d citations to %s\n", len(g.Nodes), len(g.Edges), path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "written", Path: path})
}
