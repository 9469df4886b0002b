package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-exchange-reconciler/internal/platform/metrics"
)

var scheduleInterval time.Duration

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Start a reconciliation invocation on every interval",
	Long: `Schedule starts a new invocation every interval until interrupted. Invocations
may overlap; the per-transaction locks keep them from processing the same
transaction twice. Prometheus metrics are served on METRICS_PORT.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().DurationVar(&scheduleInterval, "interval", 0,
		"time between invocations (default RECONCILER_SCHEDULE_INTERVAL)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	interval := a.cfg.Reconciler.ScheduleInterval
	if scheduleInterval > 0 {
		interval = scheduleInterval
	}

	srv := metrics.NewServer(a.cfg.Metrics.Port, a.registry)
	go func() {
		a.log.Info("Starting metrics server", "port", a.cfg.Metrics.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Metrics server error", "error", err)
		}
	}()

	a.log.Info("Scheduling reconciliation", "interval", interval)
	a.poller.Schedule(ctx, interval)
	a.log.Info("Shutdown signal received, in-flight invocations finished")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Error during metrics server shutdown", "error", err)
	}
	return nil
}
