package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/citethreads/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format: json, bibtex, ris")
	exportCmd.Flags().StringVarP(&exportOutput, "out", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <project>",
	Short: "Export a project's papers",
	Long: `Export a project's graph as JSON, or its papers as BibTeX or RIS.

Examples:
  cite export a1b2c3d4 --format bibtex -o refs.bib
  cite export a1b2c3d4 > graph.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	ctx := context.Background()
	a := mustApp(ctx)
	defer a.Close()
	svc := a.mustService(ctx)

	_, g := mustProject(svc, args[0])
	data, err := export.Render(g, format)
	if err != nil {
		exitWithError(ExitError, "rendering %s: %v", format, err)
	}

	if exportOutput == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", exportOutput, err)
	}
	if humanOutput {
		fmt.Printf("Exported %d papers to %s\n", len(g.Nodes), exportOutput)
		return nil
	}
	return outputJSON(StatusResponse{Status: "written", Path: exportOutput})
}
