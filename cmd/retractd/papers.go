package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fyrsmithlabs/retractd/internal/analysis"
	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/spf13/cobra"
)

var (
	// papers command flags
	ppKey          string
	ppTitle        string
	ppAttr         string
	ppMinCitations int
	ppTrending     float64
	ppSeminal      float64
	ppSeminalAge   float64
)

func init() {
	rootCmd.AddCommand(papersCmd)
	rootCmd.AddCommand(removeCmd)

	papersCmd.Flags().StringVar(&ppKey, "key", "", "Match the first paper whose field equals value, as field=value")
	papersCmd.Flags().StringVar(&ppTitle, "title", "", "Exact title")
	papersCmd.Flags().StringVar(&ppAttr, "attr", "", "Attribute filter as name=value")
	papersCmd.Flags().IntVar(&ppMinCitations, "min-citations", 0, "Minimum citation_count")
	papersCmd.Flags().Float64Var(&ppTrending, "trending", 0, "Minimum citations per day since publication")
	papersCmd.Flags().Float64Var(&ppSeminal, "seminal", 0, "Citation percentile (0-100) among papers old enough")
	papersCmd.Flags().Float64Var(&ppSeminalAge, "min-age", 5, "Minimum age in years for --seminal")
}

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "List stored papers, optionally filtered",
	Long: `List stored papers. Filters combine.

Examples:
  # Everything
  retractd papers

  # Papers of one journal with at least 50 citations
  retractd papers --key journal=Nature --min-citations 50

  # Papers in the top 10% of citations that are over 5 years old
  retractd papers --seminal 90 --min-age 5`,
	Args: cobra.NoArgs,
	RunE: runPapers,
}

var removeCmd = &cobra.Command{
	Use:   "remove <paper-id>",
	Short: "Delete a stored paper with its entities and chains",
	Long: `Delete a stored paper with its entities and chains and drop its cached
analysis. Run "retractd cluster" afterwards to rebuild clusters.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.RemovePaper(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed paper %s\n", args[0])
		return nil
	},
}

func runPapers(cmd *cobra.Command, args []string) error {
	filter := analysis.PaperFilter{
		Title:              ppTitle,
		MinCitations:       ppMinCitations,
		TrendingPerDay:     ppTrending,
		SeminalPercentile:  ppSeminal,
		SeminalMinAgeYears: ppSeminalAge,
	}
	if ppKey != "" {
		k, v, err := splitPair("--key", ppKey)
		if err != nil {
			return err
		}
		filter.Key, filter.Value = k, v
	}
	if ppAttr != "" {
		k, v, err := splitPair("--attr", ppAttr)
		if err != nil {
			return err
		}
		filter.Attribute, filter.AttributeValue = k, v
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	papers, err := a.service.FindPapers(ctx, filter)
	if err != nil {
		return err
	}
	return printPapers(cmd.OutOrStdout(), papers)
}

func splitPair(flag, s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("%s must be name=value, got %q", flag, s)
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), nil
}

func printPapers(w io.Writer, papers []*retraction.Paper) error {
	if outputJSON {
		if papers == nil {
			papers = []*retraction.Paper{}
		}
		for _, p := range papers {
			p.Vector = nil
		}
		return printJSON(w, papers)
	}
	if len(papers) == 0 {
		fmt.Fprintln(w, "No papers.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tJOURNAL\tTITLE")
	for _, p := range papers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Date, truncate(p.Journal, 24), truncate(p.Title, 60))
	}
	return tw.Flush()
}
