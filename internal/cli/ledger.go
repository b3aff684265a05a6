package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nurjigit18/shipledger/internal/shipbot/app"
	"github.com/nurjigit18/shipledger/internal/shipbot/directory"
	"github.com/nurjigit18/shipledger/internal/shipbot/idalloc"
	"github.com/nurjigit18/shipledger/internal/shipbot/ledger"
	"github.com/nurjigit18/shipledger/internal/shipbot/tracking"
)

func newLedgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and prepare the ledger",
	}
	cmd.AddCommand(newLedgerInitCmd(opts), newLedgerNextIDCmd(opts), newLedgerShipmentsCmd(opts))
	return cmd
}

// withGateway opens the configured backend for the duration of fn.
func withGateway(ctx context.Context, opts *options, fn func(gw ledger.Gateway) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	raw, closeGW, err := app.OpenGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGW()
	return fn(raw)
}

// sheetOrDefault falls back to the configured default sheet.
func sheetOrDefault(opts *options, sheet string) (string, error) {
	if sheet != "" {
		return sheet, nil
	}
	if opts.cfg != nil && opts.cfg.Ledger.DefaultSheet != "" {
		return opts.cfg.Ledger.DefaultSheet, nil
	}
	return "", fmt.Errorf("--sheet is required when no default_sheet is configured")
}

func newLedgerInitCmd(opts *options) *cobra.Command {
	var sheets []string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the directory worksheets and the given shipment sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withGateway(ctx, opts, func(gw ledger.Gateway) error {
				if err := directory.New(gw, 0).Bootstrap(ctx); err != nil {
					return err
				}
				targets := sheets
				if len(targets) == 0 && opts.cfg.Ledger.DefaultSheet != "" {
					targets = []string{opts.cfg.Ledger.DefaultSheet}
				}
				headers := ledger.Headers(opts.cfg.Sizes.Labels)
				for _, s := range targets {
					if err := gw.EnsureHeaders(ctx, s, headers); err != nil {
						return err
					}
				}
				created := append([]string{directory.FactoriesSheet, directory.WarehousesSheet}, targets...)
				if opts.jsonOutput {
					printJSON(cmd.OutOrStdout(), map[string]any{"sheets": created})
					return nil
				}
				for _, s := range created {
					okLabel.Fprintf(cmd.OutOrStdout(), "ready: %s\n", s)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&sheets, "sheet", nil, "Shipment sheet to create (repeatable)")
	return cmd
}

func newLedgerNextIDCmd(opts *options) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "next-id",
		Short: "Show the shipment number the next session would receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withGateway(ctx, opts, func(gw ledger.Gateway) error {
				s, err := sheetOrDefault(opts, sheet)
				if err != nil {
					return err
				}
				id, err := idalloc.New(gw).NextShipmentID(ctx, s)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					printJSON(cmd.OutOrStdout(), map[string]string{"sheet": s, "next_shipment_id": id})
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Shipment sheet")
	return cmd
}

func newLedgerShipmentsCmd(opts *options) *cobra.Command {
	var sheet, user string
	cmd := &cobra.Command{
		Use:   "shipments",
		Short: "List committed shipments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withGateway(ctx, opts, func(gw ledger.Gateway) error {
				s, err := sheetOrDefault(opts, sheet)
				if err != nil {
					return err
				}
				shipments, err := tracking.New(gw).ListShipments(ctx, s, user)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					printJSON(cmd.OutOrStdout(), shipments)
					return nil
				}
				printShipments(cmd.OutOrStdout(), shipments)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Shipment sheet")
	cmd.Flags().StringVar(&user, "user", "", "Only rows committed by this user ID")
	return cmd
}

// printShipments lists each shipment under a title line, one bag per line.
func printShipments(w io.Writer, shipments []tracking.Shipment) {
	if len(shipments) == 0 {
		fmt.Fprintln(w, "no shipments")
		return
	}
	title := cases.Title(language.English).String(strings.ReplaceAll(ledger.ColShipment, "_", " "))
	for _, sh := range shipments {
		titleLabel.Fprintf(w, "%s %s (%d items):\n", title, sh.ShipmentID, sh.Total)
		for _, r := range sh.Rows {
			status := r.Status
			if status == "" {
				status = "-"
			}
			fmt.Fprintf(w, "- %s  %s / %s  %s  %d  %s\n", r.BagID, r.Model, r.Color, r.Warehouse, r.Total, status)
		}
	}
}
