package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configName string

var rootCmd = &cobra.Command{
	Use:   "exchange_poller",
	Short: "Reconciles local exchange transactions against their counterparties",
	Long: `exchange_poller claims outstanding transactions, fetches their remote
conversations from each PFI and applies quotes, orders, status updates and
closes exactly once.

Use "run" for a single bounded invocation, or "schedule" to keep starting
invocations on a fixed interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and reports its error on stderr
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config", "exchange_poller",
		"base name of the .env configuration file")
}
