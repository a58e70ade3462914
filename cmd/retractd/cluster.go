package main

import (
	"github.com/fyrsmithlabs/retractd/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	// cluster command flags
	clGrouping string
	clMinSize  int
)

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterRelatedCmd)

	clusterCmd.Flags().StringVar(&clGrouping, "grouping", string(analysis.GroupByEntitySet),
		"Grouping: entity_set or similar_entities")
	clusterCmd.Flags().IntVar(&clMinSize, "min-size", 0, "Minimum cluster size (default from config)")
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group stored chains into clusters",
	Long: `Score every stored chain, group chains that share their entities and
replace the stored clusters.

Examples:
  # Exact entity-set grouping
  retractd cluster

  # Group chains whose entities are semantically close
  retractd cluster --grouping similar_entities --min-size 2

  # List stored clusters
  retractd cluster list`,
	Args: cobra.NoArgs,
	RunE: runCluster,
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored clusters, largest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		clusters, err := a.service.Clusters(cmd.Context())
		if err != nil {
			return err
		}
		return printClusters(cmd.OutOrStdout(), clusters)
	},
}

var clusterRelatedCmd = &cobra.Command{
	Use:   "related <cluster-id>",
	Short: "List clusters sharing relations with a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		neighbors, err := a.service.RelatedClusters(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), neighbors)
		}
		for _, n := range neighbors {
			cmd.Printf("%s\t%d shared\n", n.Cluster.ID, n.Overlap)
		}
		return nil
	},
}

func runCluster(cmd *cobra.Command, args []string) error {
	grouping, err := analysis.ParseGrouping(clGrouping)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	clusters, err := a.service.Cluster(ctx, grouping, clMinSize)
	if err != nil {
		return err
	}
	return printClusters(cmd.OutOrStdout(), clusters)
}
