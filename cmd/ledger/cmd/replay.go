package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/ledger/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <signals.csv>",
	Short: "Apply a CSV file of signals in order",
	Long: `Replay signal drafts from a CSV file.

Columns: time,symbol,type,price,quantity[,reason]

Examples:
  ledger replay signals.csv
  ledger replay --skip-rejected signals.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var replaySkipRejected bool

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replaySkipRejected, "skip-rejected", false, "skip rows the ledger rejects instead of stopping")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := replay.CSV(ctx, args[0], a.ledger, replay.Options{
		SkipRejected: replaySkipRejected,
		Logger:       a.log,
	})
	if err != nil {
		return fmt.Errorf("replay: %w (applied %d)", err, res.Applied)
	}

	acct, err := a.ledger.GetAccount(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Replayed %s: %d rows, %d applied, %d rejected\n", args[0], res.Rows, res.Applied, res.Rejected)
	fmt.Fprintf(out, "  Balance: %s  Available: %s  Profit: %s\n",
		acct.CurrentBalance.StringFixed(2), acct.AvailableBalance.StringFixed(2), acct.TotalProfit.StringFixed(2))
	return nil
}
