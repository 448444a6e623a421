package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prn-tf/stockwarden/internal/app"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/report"
)

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and load the persisted catalog",
	}
	cmd.AddCommand(
		newCatalogListCmd(opts),
		newCatalogImportCmd(opts),
		newCatalogExportCmd(opts),
	)
	return cmd
}

func newCatalogListCmd(opts *rootOptions) *cobra.Command {
	var sortBy string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if _, err := a.Checkpoints.Hydrate(ctx); err != nil {
					return err
				}
				products, err := a.Inventory.List(ctx, sortBy)
				if err != nil {
					return err
				}
				return printProducts(cmd, products)
			})
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort key: id, name, category, price or quantity")
	return cmd
}

func newCatalogImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the persisted catalog with a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				products, result, err := report.ReadFile(args[0], a.Logger)
				if err != nil {
					return err
				}
				if err := a.Store.Replace(products); err != nil {
					return err
				}
				if cp := a.Checkpoints.RunOnce(ctx); cp.Err != nil {
					return cp.Err
				} else if cp.Skipped {
					return fmt.Errorf("catalog is being checkpointed by another process, try again")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d products, skipped %d rows\n", result.Loaded, result.Skipped)
				return nil
			})
		},
	}
}

func newCatalogExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write the persisted catalog to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if _, err := a.Checkpoints.Hydrate(ctx); err != nil {
					return err
				}
				products := a.Store.Snapshot()
				if err := report.WriteFile(args[0], products); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d products to %s\n", len(products), args[0])
				return nil
			})
		},
	}
}

func printProducts(cmd *cobra.Command, products []domain.Product) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tQUANTITY\tDATE\tSUPPLIER")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%s\t%s\n",
			p.ID, p.Name, p.Category, p.Price, p.Quantity, p.UpdatedAt.Format(domain.DateLayout), p.Supplier)
	}
	return tw.Flush()
}
