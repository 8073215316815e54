package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"feedcast/internal/config"
	"feedcast/internal/pipeline"
	"feedcast/internal/store"
)

func newCollectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection pass against all configured feed sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(ctx, cmd, store.RunKindCollection, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the run record as JSON")
	return cmd
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation pass and render an episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(ctx, cmd, store.RunKindGeneration, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the run record as JSON")
	return cmd
}

// runOnce drives a single pipeline execution through the same run-ledger gate
// the daemon schedulers use, so a manual invocation never overlaps a scheduled
// run of the same kind.
func runOnce(ctx *commandContext, cmd *cobra.Command, kind store.RunKind, jsonOutput bool) error {
	logger, err := ctx.newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
		pipe := pipeline.New(cfg, st, logger)

		runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()

		// A crashed daemon or one-shot must not hold the gate until the
		// next scheduled tick; reap before trying to start.
		reaped, reapErr := st.ReapStaleRuns(runCtx, staleGrace(cfg))
		if reapErr != nil {
			logger.Warn("reap stale runs failed", "error", reapErr)
		}
		for _, stale := range reaped {
			fmt.Fprintf(out, "Reaped stale %s run %s\n", stale.Kind, shortID(stale.ID))
		}

		var run *store.Run
		switch kind {
		case store.RunKindGeneration:
			run, err = pipe.RunGeneration(runCtx)
		default:
			run, err = pipe.RunCollection(runCtx)
		}

		switch {
		case errors.Is(err, store.ErrBusy):
			fmt.Fprintf(out, "A %s run is already in progress; try again once it finishes.\n", kind)
			return nil
		case errors.Is(err, pipeline.ErrNoCandidates):
			fmt.Fprintln(out, "No candidate items in the window; nothing to generate.")
			return nil
		}

		if jsonOutput && run != nil {
			if writeErr := writeJSON(cmd, run); writeErr != nil {
				return writeErr
			}
			return err
		}

		if run != nil {
			printRunSummary(cmd, run)
		}
		return err
	})
}

func staleGrace(cfg *config.Config) time.Duration {
	if cfg.Scheduler.StaleRunGraceMinutes > 0 {
		return time.Duration(cfg.Scheduler.StaleRunGraceMinutes) * time.Minute
	}
	return 30 * time.Minute
}

func printRunSummary(cmd *cobra.Command, run *store.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s) finished with status %s\n", run.ID, run.Kind, run.Status)
	if run.Kind == store.RunKindCollection {
		fmt.Fprintf(out, "  collected: %d\n  new:       %d\n", run.ItemsCollected, run.ItemsNew)
	} else {
		fmt.Fprintf(out, "  candidates: %d\n  selected:   %d\n", run.ItemsCollected, run.ItemsNew)
	}
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "  duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.ErrorReason != "" {
		fmt.Fprintf(out, "  reason:    %s\n", run.ErrorReason)
	}
	if run.Message != "" {
		fmt.Fprintf(out, "  message:   %s\n", run.Message)
	}
}
