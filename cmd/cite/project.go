package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/project"
	"github.com/matsen/citethreads/internal/store"
	"github.com/matsen/citethreads/internal/task"
)

// progressPollInterval is how often a waiting command samples task progress.
const progressPollInterval = 500 * time.Millisecond

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectGetCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectAnalyzeCmd)
	rootCmd.AddCommand(projectCmd)
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage stored citation-graph projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, newest first",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectGetCmd = &cobra.Command{
	Use:   "get <project>",
	Short: "Show a project and its graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectGet,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <project> <name>",
	Short: "Rename a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectRename,
}

var projectAnalyzeCmd = &cobra.Command{
	Use:   "analyze <project>",
	Short: "Re-run citation intent classification on a stored graph",
	Long: `Re-run citation intent classification over a project's stored graph.
Manual labels are overwritten for the classified edges.

Requires an LLM backend (llm.provider in the config).`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectAnalyze,
}

// ProjectDetail is the JSON output of project get.
type ProjectDetail struct {
	*store.Project
	Graph paper.GraphData `json:"graph"`
}

func runProjectList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := mustApp(ctx)
	defer a.Close()
	svc := a.mustService(ctx)

	projects, err := svc.List()
	if err != nil {
		exitWithError(ExitError, "listing projects: %v", err)
	}
	if !humanOutput {
		return outputJSON(projects)
	}
	if len(projects) == 0 {
		fmt.Println("No projects")
		return nil
	}
	fmt.Printf("%d projects:\n\n", len(projects))
	for _, p := range projects {
		nodes := 0
		if p.Stats != nil {
			nodes = p.Stats.TotalNodes
		}
		fmt.Printf("  %-8s %-10s %4d papers  %s\n", p.ID, p.Status, nodes, truncateString(p.Name, ListTitleMaxLen))
	}
	return nil
}

func runProjectGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := mustApp(ctx)
	defer a.Close()
	svc := a.mustService(ctx)

	p, g := mustProject(svc, args[0])
	if humanOutput {
		fmt.Printf("%s (%s)\n", p.Name, p.ID)
		fmt.Printf("  Seed:    %s\n", p.Config.Seed)
		fmt.Printf("  Status:  %s", p.Status)
		if p.StatusMsg != "" {
			fmt.Printf(" - %s", p.StatusMsg)
		}
		fmt.Printf("\n  Created: %s\n\n", p.CreatedAt.Format(time.DateTime))
		printGraphHuman(g)
		return nil
	}
	return outputJSON(ProjectDetail{Project: p, Graph: g})
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := mustApp(ctx)
	defer a.Close()
	svc := a.mustService(ctx)

	if err := svc.Delete(ctx, args[0]); err != nil {
		exitWithError(projectExitCode(err), "deleting project: %v", err)
	}
	if humanOutput {
		fmt.Printf("Deleted project %s\n", args[0])
		return nil
	}
	return outputJSON(StatusResponse{Status: "deleted", ID: args[0]})
}

func runProjectRename(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a := mustApp(ctx)
	defer a.Close()
	svc := a.mustService(ctx)

	p, err := svc.Rename(args[0], args[1])
	if err != nil {
		exitWithError(projectExitCode(err), "renaming project: %v", err)
	}
	if humanOutput {
		fmt.Printf("Renamed %s to %q\n", p.ID, p.Name)
		return nil
	}
	return outputJSON(p)
}

func runProjectAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	a := mustApp(ctx)
	defer a.Close()
	svc := a.mustService(ctx)

	h, err := svc.Analyze(args[0])
	if err != nil {
		exitWithError(projectExitCode(err), "analyzing project: %v", err)
	}
	waitWithProgress(ctx, h)
	if err := h.Err(); err != nil && !errors.Is(err, context.Canceled) {
		exitWithError(ExitError, "analyzing project: %v", err)
	}

	p, err := svc.Get(args[0])
	if err != nil {
		exitWithError(ExitError, "reading project: %v", err)
	}
	if humanOutput {
		fmt.Println(p.StatusMsg)
		return nil
	}
	return outputJSON(p)
}

// mustProject loads a project and its graph, exiting when either is missing.
func mustProject(svc *project.Service, id string) (*store.Project, paper.GraphData) {
	p, err := svc.Get(id)
	if err != nil {
		exitWithError(projectExitCode(err), "%v", err)
	}
	g, err := svc.Graph(id)
	if err != nil {
		exitWithError(projectExitCode(err), "%v", err)
	}
	return p, g
}

// projectExitCode maps a project service error to an exit code.
func projectExitCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, project.ErrNotClassifying):
		return ExitNoLLM
	case errors.Is(err, store.ErrEmptyName), errors.Is(err, project.ErrInvalidID):
		return ExitDataError
	}
	return ExitError
}

// waitWithProgress blocks until h finishes. Progress goes to stderr in human
// mode. When ctx is cancelled the task is cancelled and awaited.
func waitWithProgress(ctx context.Context, h *task.Handle) {
	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	report := progressPrinter()
	var last paper.Progress
	for {
		select {
		case <-h.Done():
			return
		case <-ctx.Done():
			h.Cancel()
			<-h.Done()
			return
		case <-ticker.C:
			if p := h.Progress(); p != last {
				report.Report(p)
				last = p
			}
		}
	}
}
