// Package cli implements the webledger command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webledger",
	Short: "Prepaid credit ledger for the web-intelligence API",
	Long: `webledger tracks prepaid credit balances per wallet for the pay-per-use
web-intelligence API. The settlement layer deposits confirmed payments;
metered endpoints debit before fulfilling paid requests.

Run 'webledger serve' to start the daemon, then use the client commands
(deposit, balance, history) against it.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("addr", "", "daemon address (default from config)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the webledger version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, "webledger 0.1.0")
	},
}
