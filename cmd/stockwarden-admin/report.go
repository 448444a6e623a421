package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prn-tf/stockwarden/internal/app"
	"github.com/prn-tf/stockwarden/internal/service"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize or send the inventory report",
	}
	cmd.AddCommand(newReportSummaryCmd(opts), newReportSendCmd(opts))
	return cmd
}

func newReportSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print catalog totals as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if _, err := a.Checkpoints.Hydrate(ctx); err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a.Inventory.Summary(ctx))
			})
		},
	}
}

func newReportSendCmd(opts *rootOptions) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Archive the catalog as CSV and email it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if _, err := a.Checkpoints.Hydrate(ctx); err != nil {
					return err
				}
				out, err := a.Reports.Send(ctx, service.SendReportInput{Recipient: to})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "archived %d products at %s\n", out.Products, out.Location)
				if out.DeliveryErr != nil {
					return out.DeliveryErr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", out.Recipient)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient (defaults to the alert recipient)")
	return cmd
}
