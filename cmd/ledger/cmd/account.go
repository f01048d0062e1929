package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the account",
	Long: `Show balances, realized profit, commission and reserved position cost.

Examples:
  ledger account
  ledger account --history 20`,
	Args: cobra.NoArgs,
	RunE: runAccount,
}

var accountHistory int

func init() {
	rootCmd.AddCommand(accountCmd)

	accountCmd.Flags().IntVar(&accountHistory, "history", 0, "also show the last n account snapshots")
}

func runAccount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.ledger.GetAccount(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initial:      %s\n", acct.InitialBalance.StringFixed(2))
	fmt.Fprintf(out, "Current:      %s\n", acct.CurrentBalance.StringFixed(2))
	fmt.Fprintf(out, "Available:    %s\n", acct.AvailableBalance.StringFixed(2))
	fmt.Fprintf(out, "Reserved:     %s (qty %s)\n", acct.PositionCost.StringFixed(2), acct.PositionQuantity)
	fmt.Fprintf(out, "Profit:       %s\n", acct.TotalProfit.StringFixed(2))
	fmt.Fprintf(out, "Commission:   %s\n", acct.TotalCommission.StringFixed(2))
	fmt.Fprintf(out, "Updated:      %s\n", acct.UpdatedAt.Format(time.RFC3339))

	if accountHistory <= 0 {
		return nil
	}

	snaps, err := a.ledger.AccountHistory(ctx, accountHistory)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSIGNAL\tCURRENT\tAVAILABLE\tCOST\tPROFIT")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Time.Format(time.RFC3339), s.SignalID,
			s.Account.CurrentBalance.StringFixed(2), s.Account.AvailableBalance.StringFixed(2),
			s.Account.PositionCost.StringFixed(2), s.Account.TotalProfit.StringFixed(2))
	}
	return w.Flush()
}
