package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the ledger CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ledger version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Position and account settlement for trade signals")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
