package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thebtf/laboveda/internal/tactical"
	"github.com/thebtf/laboveda/pkg/models"
)

func newPromoteCmd(a *app) *cobra.Command {
	var (
		matrix string
		sku    string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "promote NODE_ID",
		Short: "Create an asset from an orphan node",
		Long: `Create an asset from an orphan node.

Without --sku the next identity of the matrix is generated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			var asset *models.Asset
			if sku == "" {
				asset, err = engine.PromoteOrphan(cmd.Context(), args[0], matrix)
			} else {
				asset, err = engine.PromoteNew(cmd.Context(), tactical.PromoteRequest{
					NodeID:      args[0],
					MatrixCode:  matrix,
					SKU:         sku,
					DisplayName: name,
				})
			}
			if err != nil {
				return err
			}
			return a.emit(asset)
		},
	}
	cmd.Flags().StringVarP(&matrix, "matrix", "m", "", "matrix code")
	cmd.Flags().StringVar(&sku, "sku", "", "explicit SKU")
	cmd.Flags().StringVar(&name, "name", "", "display name (with --sku)")
	_ = cmd.MarkFlagRequired("matrix")
	return cmd
}

func newLinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link SKU NODE_ID...",
		Short: "Attach orphan nodes to an existing asset",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			result, err := engine.LinkExisting(cmd.Context(), args[1:], args[0])
			if err != nil {
				return err
			}
			return a.emit(result)
		},
	}
}

func newIncinerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "incinerate NODE_ID...",
		Short: "Delete orphan nodes",
		Long: `Delete orphan nodes.

Nodes attached to an asset are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			n, err := engine.IncinerateNodes(cmd.Context(), args)
			if err != nil {
				return err
			}
			return a.emit(map[string]int64{"deleted": n})
		},
	}
}

func newOrphansCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List unattached nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			nodes, err := engine.ListOrphanNodes(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.emit(nodes)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum results")
	return cmd
}

func newIngestCmd(a *app) *cobra.Command {
	var node models.Node
	cmd := &cobra.Command{
		Use:   "ingest NODE_ID",
		Short: "Insert or refresh a node's counters",
		Long: `Insert or refresh a node's counters.

If the node belongs to an asset, the asset and its matrix are recomputed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			node.ID = args[0]
			if err := engine.IngestNode(cmd.Context(), &node); err != nil {
				return err
			}
			return a.emit(node)
		},
	}
	cmd.Flags().StringVar(&node.Title, "title", "", "node title")
	cmd.Flags().StringVar(&node.ImageURL, "image", "", "image URL")
	cmd.Flags().Int64Var(&node.Impressions, "impressions", 0, "impressions")
	cmd.Flags().Int64Var(&node.OutboundClicks, "clicks", 0, "outbound clicks")
	cmd.Flags().Int64Var(&node.Saves, "saves", 0, "saves")
	return cmd
}
