package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"feedcast/internal/config"
	"feedcast/internal/store"
)

const searchBodyPreviewLen = 60

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var windowHours int
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over stored items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				window := time.Duration(windowHours) * time.Hour
				items, err := st.Search(cmd.Context(), query, window, limit)
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{"items": items})
				}

				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No matching items.")
					return nil
				}

				headers := []string{"Source ID", "Author", "Stage", "Score", "Posted", "Body"}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.SourceID,
						item.Author,
						string(item.Stage),
						formatScore(item.InterestScore),
						item.PostedAt.UTC().Format("2006-01-02 15:04"),
						previewBody(item.Body),
					})
				}
				fmt.Fprintln(out, renderTable(headers, rows, 3))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&windowHours, "window", 0, "Restrict matches to items observed in the trailing N hours (0 = all)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
	return cmd
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *score)
}

func previewBody(body string) string {
	collapsed := strings.Join(strings.Fields(body), " ")
	if len(collapsed) <= searchBodyPreviewLen {
		return collapsed
	}
	return collapsed[:searchBodyPreviewLen-3] + "..."
}
