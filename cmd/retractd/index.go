package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/retractd/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	// index command flags
	idxEntitiesOnly bool
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&idxEntitiesOnly, "entities", false, "Only embed stored entities that have no vector yet")
}

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Load and embed papers, entities and chains",
	Long: `Load records from a JSON file or stdin into the store, embedding papers
and entities that carry no vector.

The input is either a JSON array of papers or a dataset object:
  {"papers": [...], "entities": [...], "chains": [...]}

Examples:
  # Index a dataset
  retractd index papers.json

  # Index from stdin
  cat papers.json | retractd index -

  # Embed entities stored without vectors
  retractd index --entities`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if idxEntitiesOnly {
		n, err := a.service.IndexEntities(ctx, "")
		if err != nil {
			return err
		}
		cmd.Printf("Embedded %d entities.\n", n)
		return nil
	}

	content, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	ds, err := parseDataset(content)
	if err != nil {
		return err
	}
	if err := a.service.Import(ctx, ds); err != nil {
		return err
	}
	cmd.Printf("Indexed %d papers, %d entities, %d chains.\n", len(ds.Papers), len(ds.Entities), len(ds.Chains))
	return nil
}

// readInput reads the named file, or stdin when no file or "-" is given.
func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return content, nil
}

// parseDataset accepts a bare array of papers or a dataset object.
func parseDataset(content []byte) (analysis.Dataset, error) {
	var ds analysis.Dataset
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return ds, fmt.Errorf("no records to index")
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &ds.Papers); err != nil {
			return ds, fmt.Errorf("failed to parse papers: %w", err)
		}
		return ds, nil
	}
	if err := json.Unmarshal(trimmed, &ds); err != nil {
		return ds, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return ds, nil
}
