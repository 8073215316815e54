package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"feedcast/internal/daemon"
	"feedcast/internal/metrics"
	"feedcast/internal/pipeline"
	"feedcast/internal/scheduler"
	"feedcast/internal/store"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the schedulers and status API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}

			collector, err := metrics.NewCollector()
			if err != nil {
				st.Close()
				return fmt.Errorf("register metrics: %w", err)
			}

			pipe := pipeline.New(cfg, st, logger, pipeline.WithMetrics(collector))
			sched := scheduler.New(cfg, st, pipe, logger)

			d, err := daemon.New(cfg, st, sched, collector, logger)
			if err != nil {
				st.Close()
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				d.Close()
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "feedcast daemon started")
			if addr := d.APIAddr(); addr != "" {
				fmt.Fprintf(out, "status API listening on %s\n", addr)
			}

			<-runCtx.Done()
			logger.Info("shutdown signal received")
			d.Stop()
			return d.Close()
		},
	}
}
