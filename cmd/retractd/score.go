package main

import (
	"github.com/fyrsmithlabs/retractd/internal/confidence"
	"github.com/spf13/cobra"
)

var (
	// score command flags
	scKey     string
	scWeights []float64
)

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVar(&scKey, "key", "id", "Chain field or attribute to match")
	scoreCmd.Flags().Float64SliceVar(&scWeights, "weights", nil,
		"Five signal weights summing to 1: frequency,reasoning,citation,temporal,credibility")
}

var scoreCmd = &cobra.Command{
	Use:   "score <value>",
	Short: "Score a stored chain against every stored chain",
	Long: `Compute the confidence of the first stored chain whose --key equals value.

Examples:
  # By chain id (hyphens optional)
  retractd score 3e1f0c1a-1c7b-4f7e-9e8a-2f4a7c9d0b11

  # By attribute, with custom weights
  retractd score --key doi 10.1000/xyz --weights 0.2,0.2,0.2,0.2,0.2`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	weights, err := parseWeights(scWeights)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := a.service.ScoreChain(ctx, scKey, args[0], weights)
	if err != nil {
		return err
	}
	return printScored(cmd.OutOrStdout(), sc)
}

func parseWeights(values []float64) (*confidence.Weights, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) != 5 {
		return nil, confidence.ErrInvalidWeights
	}
	w := confidence.Weights{
		Frequency:            values[0],
		ReasoningConsistency: values[1],
		CitationStrength:     values[2],
		TemporalRelevance:    values[3],
		SourceCredibility:    values[4],
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}
