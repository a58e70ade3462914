package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// steps command flags
	stKey string
)

func init() {
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(breakdownCmd)
	stepsCmd.Flags().StringVar(&stKey, "key", "id", "Chain field or attribute to match")
}

var stepsCmd = &cobra.Command{
	Use:   "steps <value>",
	Short: "Print the reasoning steps of a stored chain",
	Long: `Print the reasoning steps of the first stored chain whose --key equals value.

Examples:
  retractd steps 3e1f0c1a-1c7b-4f7e-9e8a-2f4a7c9d0b11
  retractd steps --key paper_id 8f14e45f-ceea-467f-a0e6-1b1b2c8c1a5e`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		steps, err := a.service.ReasoningSteps(ctx, stKey, args[0])
		if err != nil {
			return err
		}
		return printSteps(cmd, steps)
	},
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown <problem>",
	Short: "Split a retraction problem into sub-problems",
	Long: `Ask the configured generator to split a problem statement into
sub-problems, one per line.

Example:
  retractd breakdown "figures appear reused across two unrelated papers"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		parts, err := a.service.BreakDown(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printSteps(cmd, parts)
	},
}

func printSteps(cmd *cobra.Command, steps []string) error {
	w := cmd.OutOrStdout()
	if outputJSON {
		if steps == nil {
			steps = []string{}
		}
		return printJSON(w, steps)
	}
	for i, s := range steps {
		fmt.Fprintf(w, "%d. %s\n", i+1, s)
	}
	return nil
}
