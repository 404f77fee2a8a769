package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thebtf/laboveda/internal/tactical"
	"github.com/thebtf/laboveda/pkg/models"
)

func newMatrixCmd(a *app) *cobra.Command {
	matrixCmd := &cobra.Command{
		Use:   "matrix",
		Short: "Manage matrices",
	}

	var (
		name string
		kind string
	)
	createCmd := &cobra.Command{
		Use:   "create CODE",
		Short: "Create a matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			m, err := engine.CreateMatrix(cmd.Context(), tactical.CreateMatrixRequest{
				Code:       args[0],
				VisualName: name,
				Kind:       models.MatrixKind(kind),
			})
			if err != nil {
				return err
			}
			return a.emit(m)
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "visual name used in display names")
	createCmd.Flags().StringVar(&kind, "kind", "", "PRIMARY or SECONDARY (default PRIMARY)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List matrices, highest score first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			matrices, err := engine.ListMatrices(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(matrices)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show CODE",
		Short: "Show a matrix and its assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			m, err := engine.GetMatrix(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			assets, err := engine.ListAssetsByMatrix(cmd.Context(), m.Code)
			if err != nil {
				return err
			}
			return a.emit(map[string]any{"matrix": m, "assets": assets})
		},
	}

	matrixCmd.AddCommand(createCmd, listCmd, showCmd)
	return matrixCmd
}

func newNextIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next-id CODE",
		Short: "Reserve the next SKU of a matrix",
		Long: `Reserve the next SKU of a matrix.

The sequence advances even if the SKU is never used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			id, err := engine.NextIdentity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(id)
		},
	}
}

func newAssetCmd(a *app) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Inspect and edit assets",
	}

	showCmd := &cobra.Command{
		Use:   "show SKU",
		Short: "Show an asset and its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			asset, err := engine.GetAsset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			nodes, err := engine.ListNodesByAsset(cmd.Context(), asset.SKU)
			if err != nil {
				return err
			}
			return a.emit(map[string]any{"asset": asset, "nodes": nodes})
		},
	}

	var revenue float64
	revenueCmd := &cobra.Command{
		Use:   "revenue SKU",
		Short: "Set the revenue of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			asset, err := engine.SetAssetRevenue(cmd.Context(), args[0], revenue)
			if err != nil {
				return err
			}
			return a.emit(asset)
		},
	}
	revenueCmd.Flags().Float64Var(&revenue, "amount", 0, "revenue in dollars")
	_ = revenueCmd.MarkFlagRequired("amount")

	moveCmd := &cobra.Command{
		Use:   "move SKU MATRIX",
		Short: "Move an asset to another matrix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			asset, err := engine.MoveAsset(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.emit(asset)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete SKU",
		Short: "Delete an asset, orphaning its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			if err := engine.DeleteAsset(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.emit(map[string]string{"deleted": args[0]})
		},
	}

	var limit int
	searchCmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search assets by SKU or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			assets, err := engine.SearchAssets(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return a.emit(assets)
		},
	}
	searchCmd.Flags().IntVar(&limit, "limit", 20, "maximum results")

	assetCmd.AddCommand(showCmd, revenueCmd, moveCmd, deleteCmd, searchCmd)
	return assetCmd
}
