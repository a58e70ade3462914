package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fyrsmithlabs/retractd/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	// analyze command flags
	anRefresh bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&anRefresh, "refresh", false, "Drop the cached analysis and recompute it")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <paper-id>",
	Short: "Analyze why a stored paper may have been retracted",
	Long: `Analyze a stored paper: extract entities, build reasoning chains, score
them against the stored chain population and list similar papers.

Entity extraction and chain building call the configured generator
(generator.api_key or OPENAI_API_KEY). Stored entities and chains are reused.
Results are cached until --refresh.

Examples:
  retractd analyze 8f14e45f-ceea-467f-a0e6-1b1b2c8c1a5e
  retractd analyze 8f14e45fceea467fa0e61b1b2c8c1a5e --refresh --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var out *analysis.PaperAnalysis
	if anRefresh {
		out, err = a.service.Reanalyze(ctx, args[0])
	} else {
		out, err = a.service.AnalyzePaper(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}
	return printAnalysis(cmd.OutOrStdout(), out)
}

func printAnalysis(w io.Writer, a *analysis.PaperAnalysis) error {
	fmt.Fprintf(w, "Paper: %s (%s)\n\n", a.Title, a.PaperID)

	fmt.Fprintf(w, "Entities (%d):\n", len(a.Entities))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range a.Entities {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", e.Category, e.RelevanceScore, truncate(e.Text, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nChains (%d):\n", len(a.Chains))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, sc := range a.Chains {
		fmt.Fprintf(tw, "  %.2f\t%s\t%s\n", sc.OverallConfidence, sc.Level, truncate(sc.Chain.OverallExplanation, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nSimilar papers:")
	return printResults(w, a.SimilarPapers)
}
