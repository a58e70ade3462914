package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fyrsmithlabs/retractd/internal/retraction"
	"github.com/fyrsmithlabs/retractd/internal/similarity"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResults(w io.Writer, results []similarity.Result) error {
	if outputJSON {
		return printJSON(w, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tID\tLABEL")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", r.Rank, r.Score, r.CandidateID, truncate(resultLabel(r), 60))
	}
	return tw.Flush()
}

// resultLabel picks the human-readable field of a candidate.
func resultLabel(r similarity.Result) string {
	for _, key := range []string{"title", "text"} {
		if v, ok := r.Candidate.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func printScored(w io.Writer, sc retraction.ScoredChain) error {
	if outputJSON {
		return printJSON(w, sc)
	}
	if !sc.Found {
		fmt.Fprintf(w, "Confidence: %.2f (%s): %s\n", sc.OverallConfidence, sc.Level, sc.Reason)
		return nil
	}
	fmt.Fprintf(w, "Chain:      %s\n", sc.Chain.ID)
	fmt.Fprintf(w, "Confidence: %.2f (%s)\n", sc.OverallConfidence, sc.Level)
	fmt.Fprintf(w, "Steps:      %d\n", sc.ReasoningStepsCount)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNAL\tVALUE")
	for _, sig := range retraction.Signals {
		fmt.Fprintf(tw, "%s\t%.3f\n", sig, sc.Breakdown[sig])
	}
	return tw.Flush()
}

func printClusters(w io.Writer, clusters []retraction.Cluster) error {
	if outputJSON {
		return printJSON(w, clusters)
	}
	if len(clusters) == 0 {
		fmt.Fprintln(w, "No clusters.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIZE\tCONFIDENCE\tSEVERITY\tREASON")
	for _, c := range clusters {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.1f\t%s\n",
			truncate(c.ID, 12), c.Size, c.AvgConfidence, c.AvgSeverity, c.CommonReason)
	}
	return tw.Flush()
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	return string(runes[:maxLen-3]) + "..."
}
