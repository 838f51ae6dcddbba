package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/sensorable/foodset/internal/ledger"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the images of one run",
		Long: `History lists the runs recorded with "foodset run --ledger", newest first. Given a run ID
it lists the outcome of every image of that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list, 0 for all")
	cmd.Flags().String("ledger-dir", "", "Ledger directory (default from config or XDG data dir)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("ledger-dir") {
		if cfg.LedgerDir, err = cmd.Flags().GetString("ledger-dir"); err != nil {
			return err
		}
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(l))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer multierr.AppendInvoke(&err, multierr.Invoke(w.Flush))

	if len(args) == 1 {
		runID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Errorf("invalid run id %q", args[0])
		}
		items, err := l.Items(cmd.Context(), runID)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "IMAGE\tFILE\tCATEGORY\tOUTCOME\tERROR")
		for _, it := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", it.ImageID, it.FileName, it.Category, it.Outcome,
				it.Error)
		}
		return nil
	}

	runs, err := l.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ID\tSPLIT\tSTARTED\tDURATION\tSELECTED\tWRITTEN\tINTERRUPTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%t\n", r.ID, r.Split,
			r.Started.Local().Format(time.DateTime), r.Finished.Sub(r.Started).Round(time.Second),
			r.Selected, r.Written, r.Interrupted)
	}
	return nil
}
