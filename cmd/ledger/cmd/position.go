package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/ledger/ledger"
)

var positionCmd = &cobra.Command{
	Use:     "position [symbol]",
	Aliases: []string{"positions"},
	Short:   "Show open positions",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runPosition,
}

func init() {
	rootCmd.AddCommand(positionCmd)
}

func runPosition(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var positions []ledger.Position
	if len(args) == 1 {
		p, ok, err := a.ledger.GetPosition(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "No position in %s\n", args[0])
			return nil
		}
		positions = append(positions, p)
	} else {
		if positions, err = a.ledger.ListPositions(ctx); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSIDE\tQTY\tAVG\tRESERVED\tSTATUS")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Symbol, p.Side, p.Quantity, p.AvgPrice.StringFixed(4), p.Reserved.StringFixed(2), p.Status)
	}
	return w.Flush()
}
