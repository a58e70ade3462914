// Package main implements the retractd CLI: indexing papers, similarity
// search, chain scoring, clustering and per-paper retraction analysis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/retractd/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// configPath overrides ~/.config/retractd/config.yaml
	configPath string
	// outputJSON prints results as JSON instead of tables
	outputJSON bool
	// version information
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithRunID(ctx, uuid.NewString())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "retractd",
	Short: "Retraction analysis over a local paper population",
	Long: `retractd indexes academic papers, finds similar papers and entities,
scores retraction reasoning chains and groups them into clusters.

Papers, entities, chains and clusters live in a local SQLite database.
Embeddings, similarity results and paper analyses are cached in Redis
(or in memory with cache.backend: memory).`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/retractd/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
}
