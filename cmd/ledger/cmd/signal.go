package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/ledger/journal"
	"github.com/rustyeddy/ledger/ledger"
)

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Apply, update and query trade signals",
	Long: `Apply trade signals to the ledger and query the signal log.

Subcommands:
  apply  - Apply a BUY_OPEN, SELL_OPEN, BUY_CLOSE or SELL_CLOSE signal
  update - Force-close an opening signal or change its reason
  list   - List recorded signals
  show   - Show one signal as an Org-mode block
  rm     - Remove a signal from the log

Examples:
  ledger signal apply BUY_OPEN RB2410 3000 10 --reason breakout
  ledger signal update 01J... --status CLOSED --close-price 2950
  ledger signal list --day 2024-06-03`,
}

var signalApplyCmd = &cobra.Command{
	Use:   "apply <type> <symbol> <price> <quantity>",
	Short: "Apply a signal",
	Args:  cobra.ExactArgs(4),
	RunE:  runSignalApply,
}

var signalUpdateCmd = &cobra.Command{
	Use:   "update <signal-id>",
	Short: "Update the status or reason of a signal",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignalUpdate,
}

var signalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signals",
	Args:  cobra.NoArgs,
	RunE:  runSignalList,
}

var signalShowCmd = &cobra.Command{
	Use:   "show <signal-id>",
	Short: "Show a signal",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignalShow,
}

var signalRmCmd = &cobra.Command{
	Use:   "rm <signal-id>",
	Short: "Remove a signal that no longer backs an open lot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignalRm,
}

var (
	applyReason string
	applyAt     string

	updateStatus     string
	updateClosePrice string
	updateCloseDate  string
	updateReason     string

	listSymbol string
	listStatus string
	listLimit  int
	listDay    string
)

func init() {
	rootCmd.AddCommand(signalCmd)
	signalCmd.AddCommand(signalApplyCmd)
	signalCmd.AddCommand(signalUpdateCmd)
	signalCmd.AddCommand(signalListCmd)
	signalCmd.AddCommand(signalShowCmd)
	signalCmd.AddCommand(signalRmCmd)

	signalApplyCmd.Flags().StringVarP(&applyReason, "reason", "r", "", "why the signal was taken")
	signalApplyCmd.Flags().StringVar(&applyAt, "at", "", "signal time (RFC3339, default now)")

	signalUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "new status (CLOSED)")
	signalUpdateCmd.Flags().StringVar(&updateClosePrice, "close-price", "", "price to settle the remaining lot at")
	signalUpdateCmd.Flags().StringVar(&updateCloseDate, "close-date", "", "close time (RFC3339, default now)")
	signalUpdateCmd.Flags().StringVarP(&updateReason, "reason", "r", "", "replace the reason")

	signalListCmd.Flags().StringVarP(&listSymbol, "symbol", "s", "", "only this symbol")
	signalListCmd.Flags().StringVar(&listStatus, "status", "", "only this status")
	signalListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "only the most recent n")
	signalListCmd.Flags().StringVar(&listDay, "day", "", "signals closed on YYYY-MM-DD (SQLite only)")
}

func runSignalApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	typ, err := ledger.ParseSignalType(args[0])
	if err != nil {
		return err
	}
	price, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("bad price %q: %w", args[2], err)
	}
	qty, err := decimal.NewFromString(args[3])
	if err != nil {
		return fmt.Errorf("bad quantity %q: %w", args[3], err)
	}
	d := ledger.Draft{Symbol: args[1], Type: typ, Price: price, Quantity: qty, Reason: applyReason}
	if applyAt != "" {
		if d.Time, err = time.Parse(time.RFC3339, applyAt); err != nil {
			return fmt.Errorf("bad --at: %w", err)
		}
	}

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sig, err := a.ledger.ApplySignal(ctx, d)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ %s\n", sig)
	if !sig.Type.IsOpen() {
		fmt.Fprintf(out, "  Realized: %s  Commission: %s\n", sig.RealizedProfit.StringFixed(2), sig.Commission.StringFixed(2))
	}
	return nil
}

func runSignalUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var p ledger.Patch
	if updateStatus != "" {
		st, err := ledger.ParseSignalStatus(updateStatus)
		if err != nil {
			return err
		}
		p.Status = &st
	}
	if updateClosePrice != "" {
		cp, err := decimal.NewFromString(updateClosePrice)
		if err != nil {
			return fmt.Errorf("bad --close-price: %w", err)
		}
		p.ClosePrice = &cp
	}
	if updateCloseDate != "" {
		cd, err := time.Parse(time.RFC3339, updateCloseDate)
		if err != nil {
			return fmt.Errorf("bad --close-date: %w", err)
		}
		p.CloseDate = &cd
	}
	if cmd.Flags().Changed("reason") {
		p.Reason = &updateReason
	}

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sig, err := a.ledger.UpdateSignalStatus(ctx, args[0], p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s  realized %s\n", sig, sig.RealizedProfit.StringFixed(2))
	return nil
}

func runSignalList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var sigs []ledger.Signal
	if listDay != "" {
		j, ok := a.store.(*journal.SQLite)
		if !ok {
			return fmt.Errorf("--day needs the sqlite journal")
		}
		start, end, err := dayBounds(time.Local, listDay)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		sigs, err = j.ListClosedBetween(ctx, start, end)
		if err != nil {
			return fmt.Errorf("query signals: %w", err)
		}
	} else {
		f := ledger.SignalFilter{Symbol: listSymbol, Limit: listLimit}
		if listStatus != "" {
			if f.Status, err = ledger.ParseSignalStatus(listStatus); err != nil {
				return err
			}
		}
		if sigs, err = a.ledger.ListSignals(ctx, f); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, s := range sigs {
		fmt.Fprintf(out, "%s %s\n", s.Time.Format(time.RFC3339), s)
	}
	if listDay != "" {
		sum := journal.Summarize(sigs)
		fmt.Fprintf(out, "\nClosed: %d  Winners: %d  Losers: %d  Net: %s  Commission: %s\n",
			sum.Closed, sum.Winners, sum.Losers, sum.NetProfit.StringFixed(2), sum.Commission.StringFixed(2))
	}
	return nil
}

func runSignalShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sig, err := a.ledger.GetSignal(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get signal: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatSignalOrg(sig))
	return nil
}

func runSignalRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ledger.RemoveSignal(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", args[0])
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
