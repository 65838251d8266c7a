package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"buchhaltung/internal/aggregate"
	"buchhaltung/internal/cli"
	"buchhaltung/internal/config"
	"buchhaltung/internal/core"
	"buchhaltung/internal/export"
	"buchhaltung/internal/livingapps"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
	"buchhaltung/internal/worker"
)

const requestTimeout = time.Minute

type collections struct {
	costGroups []core.CostGroup
	receipts   []core.Receipt
	handovers  []core.Handover
}

// fetchAll reads the three collections concurrently; any failure fails the
// whole fetch.
func fetchAll(ctx context.Context, b records.Backend) (collections, error) {
	var c collections
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		c.costGroups, err = b.ListCostGroups(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.receipts, err = b.ListReceipts(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.handovers, err = b.ListHandovers(gctx)
		return err
	})
	return c, g.Wait()
}

func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b records.Backend) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	b, cleanup, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, b)
}

var listCmd = &cobra.Command{
	Use:       "list {receipts|cost-groups|handovers}",
	Short:     "List the records of one collection",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"receipts", "cost-groups", "handovers"},
	Example: `  belegctl list receipts --kind eingangsrechnung
  belegctl list cost-groups --backend sqlite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		return withBackend(cmd, func(ctx context.Context, b records.Backend) error {
			c, err := fetchAll(ctx, b)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch args[0] {
			case "receipts":
				return writeReceipts(out, aggregate.FilterAndSortReceipts(c.receipts, core.ParseKind(kind)), c.costGroups)
			case "cost-groups":
				return writeCostGroups(out, c.costGroups, c.receipts)
			case "handovers":
				return writeHandovers(out, c.handovers)
			default:
				return fmt.Errorf("unknown collection %q", args[0])
			}
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print totals, cost group breakdown and monthly series",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b records.Backend) error {
			c, err := fetchAll(ctx, b)
			if err != nil {
				return err
			}
			s := aggregate.Summarize(c.receipts, c.costGroups, time.Now())
			return writeSummary(cmd.OutOrStdout(), s,
				aggregate.CostGroupBreakdown(c.receipts, c.costGroups),
				aggregate.MonthlySeries(c.receipts))
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the receipts covered by a handover",
}

// handoverRows loads the handover and renders the receipts of its period.
func handoverRows(ctx context.Context, b records.Backend, id string) (export.Period, [][]string, error) {
	h, err := b.GetHandover(ctx, id)
	if err != nil {
		return export.Period{}, nil, fmt.Errorf("handover %s: %w", id, err)
	}
	c, err := fetchAll(ctx, b)
	if err != nil {
		return export.Period{}, nil, err
	}
	p := export.HandoverPeriod(h)
	return p, export.Rows(export.ReceiptsInPeriod(c.receipts, p), c.costGroups), nil
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv <handover-id>",
	Short: "Write the handover as semicolon separated CSV",
	Args:  cobra.ExactArgs(1),
	Example: `  belegctl export csv 6990c1f2aa01 -o -
  belegctl export csv 6990c1f2aa01 --dir ./exports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		dir, _ := cmd.Flags().GetString("dir")
		return withBackend(cmd, func(ctx context.Context, b records.Backend) error {
			p, rows, err := handoverRows(ctx, b, args[0])
			if err != nil {
				return err
			}
			if output == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), rows)
			}
			if output == "" {
				output = filepath.Join(dir, p.Filename())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()
			w := bufio.NewWriter(f)
			if _, err := w.WriteString("\ufeff"); err != nil {
				return err
			}
			if err := export.WriteCSV(w, rows); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d Belege nach %s exportiert\n", len(rows)-2, output)
			return nil
		})
	},
}

var exportSheetsCmd = &cobra.Command{
	Use:   "sheets <handover-id>",
	Short: "Write the handover into the configured Google Sheets tab",
	Long: `Replaces the contents of GOOGLE_EXPORT_SHEET in GOOGLE_SPREADSHEET_ID with
the receipts of the handover period. Credentials come from
GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if !cfg.ExportEnabled() {
			return fmt.Errorf("google sheets export is not configured (GOOGLE_SPREADSHEET_ID)")
		}
		return withBackend(cmd, func(ctx context.Context, b records.Backend) error {
			_, rows, err := handoverRows(ctx, b, args[0])
			if err != nil {
				return err
			}
			exporter, err := export.NewSheetsExporterFromCredentials(ctx,
				cfg.GoogleSpreadsheetID, cfg.GoogleExportSheet,
				cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
			if err != nil {
				return err
			}
			if err := exporter.Export(ctx, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d Belege nach %q exportiert\n", len(rows)-2, cfg.GoogleExportSheet)
			return nil
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy the hosted collections into the local SQLite database once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentCLI)
		repo := cli.InitSQLite(logger, cfg)
		defer repo.Close()

		source, err := livingapps.New(livingapps.Config{
			BaseURL: cfg.LivingAppsBaseURL,
			Apps: livingapps.AppIDs{
				CostGroups: cfg.AppIDCostGroups,
				Receipts:   cfg.AppIDReceipts,
				Handovers:  cfg.AppIDHandovers,
			},
			Session: cfg.LivingAppsSession,
			Token:   cfg.LivingAppsToken,
		})
		if err != nil {
			return err
		}
		return worker.NewMirror(source, repo, cfg.MirrorTimeout).SyncAll(cmd.Context())
	},
}

func init() {
	listCmd.Flags().String("kind", "", "only receipts of this Belegart (wire value, e.g. bankbeleg)")

	exportCSVCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default: <dir>/uebergabe_<von>_<bis>.csv)")
	exportCSVCmd.Flags().String("dir", ".", "directory for the default file name")

	exportCmd.AddCommand(exportCSVCmd, exportSheetsCmd)
	rootCmd.AddCommand(listCmd, summaryCmd, exportCmd, syncCmd)
}
