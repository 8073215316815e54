package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"feedcast/internal/config"
	"feedcast/internal/stage"
	"feedcast/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline statistics and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("load statistics: %w", err)
				}
				active, err := st.RunningRuns(cmd.Context())
				if err != nil {
					return fmt.Errorf("load active runs: %w", err)
				}
				recent, err := st.RecentRuns(cmd.Context(), 10)
				if err != nil {
					return fmt.Errorf("load recent runs: %w", err)
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{
						"stats":       stats,
						"active_runs": active,
						"recent_runs": recent,
					})
				}

				renderStatus(cmd, cfg, stats, active, recent)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, cfg *config.Config, stats *store.Statistics, active, recent []*store.Run) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range sectionHeader("Feedcast Status", colorize) {
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out, statusLine("Database", statusOK, cfg.DatabasePath(), colorize))
	fmt.Fprintln(out, statusLine("Items", statusInfo, fmt.Sprintf("%d total, %d today", stats.TotalItems, stats.ItemsToday), colorize))
	if stats.ScoredItems > 0 {
		fmt.Fprintln(out, statusLine("Scores", statusInfo, fmt.Sprintf("%.1f average across %d items", stats.AverageScore, stats.ScoredItems), colorize))
	}
	fmt.Fprintln(out, statusLine("Episodes", statusInfo, fmt.Sprintf("%d rendered", stats.EpisodeCount), colorize))
	fmt.Fprintln(out, statusLine("Active runs", activeRunKind(active), describeActiveRuns(active), colorize))
	fmt.Fprintln(out, statusLine("Last collection", runStatusKind(stats.LastCollection), describeRun(stats.LastCollection), colorize))
	fmt.Fprintln(out, statusLine("Last generation", runStatusKind(stats.LastGeneration), describeRun(stats.LastGeneration), colorize))
	fmt.Fprintln(out)

	headers := []string{"Stage", "Items"}
	rows := make([][]string, 0, len(stage.All()))
	for _, st := range stage.All() {
		rows = append(rows, []string{string(st), fmt.Sprintf("%d", stats.CountsByStage[st])})
	}
	fmt.Fprintln(out, renderTable(headers, rows, 1))

	if len(recent) > 0 {
		fmt.Fprintln(out)
		headers := []string{"Run", "Kind", "Status", "Started", "Reason"}
		rows := make([][]string, 0, len(recent))
		for _, run := range recent {
			rows = append(rows, []string{
				shortID(run.ID),
				string(run.Kind),
				string(run.Status),
				run.StartedAt.UTC().Format(time.RFC3339),
				run.ErrorReason,
			})
		}
		fmt.Fprintln(out, renderTable(headers, rows))
	}
}

func activeRunKind(active []*store.Run) statusKind {
	if len(active) == 0 {
		return statusInfo
	}
	return statusOK
}

func describeActiveRuns(active []*store.Run) string {
	if len(active) == 0 {
		return "none"
	}
	kinds := make([]string, 0, len(active))
	for _, run := range active {
		kinds = append(kinds, string(run.Kind))
	}
	return strings.Join(kinds, ", ")
}

func runStatusKind(run *store.Run) statusKind {
	if run == nil {
		return statusWarn
	}
	switch run.Status {
	case store.RunStatusSucceeded:
		return statusOK
	case store.RunStatusFailed:
		return statusError
	default:
		return statusInfo
	}
}

func describeRun(run *store.Run) string {
	if run == nil {
		return "never"
	}
	desc := fmt.Sprintf("%s at %s", run.Status, run.StartedAt.UTC().Format(time.RFC3339))
	if run.ErrorReason != "" {
		desc += " (" + run.ErrorReason + ")"
	}
	return desc
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
