package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	// similar command flags
	simTopK      int
	simThreshold float64
)

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.AddCommand(similarPapersCmd)
	similarCmd.AddCommand(similarEntitiesCmd)

	similarCmd.PersistentFlags().IntVarP(&simTopK, "top-k", "k", 0, "Maximum number of results (default from config)")
	similarPapersCmd.Flags().Float64Var(&simThreshold, "threshold", 0, "Minimum cosine similarity (default from config)")
}

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find stored papers or entities similar to a text",
	Long: `Find stored papers or entities similar to a text.

Examples:
  # Papers similar to a query
  retractd similar papers "image duplication in western blots"

  # Top 3 entities, no threshold
  retractd similar entities -k 3 "data fabrication"`,
}

var similarPapersCmd = &cobra.Command{
	Use:   "papers <text>",
	Short: "Rank stored papers by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.service.SimilarPapers(cmd.Context(), strings.Join(args, " "), simTopK, simThreshold)
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), results)
	},
}

var similarEntitiesCmd = &cobra.Command{
	Use:   "entities <text>",
	Short: "Rank stored entities by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.service.SimilarEntities(cmd.Context(), strings.Join(args, " "), simTopK)
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), results)
	},
}
