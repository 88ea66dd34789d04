// Package main provides the cite CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	// configPath overrides the global config file location
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cite",
	Short: "Citation graph builder with intent classification",
	Long: `cite builds citation graphs around a seed paper.

It walks references and citations breadth-first across Semantic Scholar,
OpenAlex, Crossref and arXiv, falling back between sources when one is
rate limited, then labels each citation as SUPPORT, OPPOSE or NEUTRAL
with an LLM.

Projects are stored in a local SQLite database and can be served over
HTTP with 'cite serve'. All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env if present (ignore error if missing)
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/cite/config.yml)")
	rootCmd.Version = Version
}
