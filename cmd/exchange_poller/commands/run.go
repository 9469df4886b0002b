package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one bounded reconciliation invocation",
	Long: `Run processes outstanding transactions in batches until the pass budget
(RECONCILER_PASS_BUDGET) is spent, then waits for queued notifications and exits.
Failures inside a batch are logged and retried by the next invocation.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	a.poller.Run(ctx)
	return nil
}
