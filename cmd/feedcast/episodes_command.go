package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"feedcast/internal/config"
	"feedcast/internal/store"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "List rendered episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				episodes, err := st.ListEpisodes(cmd.Context(), limit)
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{"episodes": episodes})
				}

				out := cmd.OutOrStdout()
				if len(episodes) == 0 {
					fmt.Fprintln(out, "No episodes rendered yet.")
					return nil
				}

				headers := []string{"ID", "Title", "Items", "Duration", "Created", "Audio"}
				rows := make([][]string, 0, len(episodes))
				for _, episode := range episodes {
					rows = append(rows, []string{
						shortID(episode.ID),
						episode.Title,
						fmt.Sprintf("%d", episode.ItemCount),
						formatDuration(episode.DurationSeconds),
						episode.CreatedAt.UTC().Format("2006-01-02 15:04"),
						episode.AudioPath,
					})
				}
				fmt.Fprintln(out, renderTable(headers, rows, 2, 3))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of episodes to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit episodes as JSON")
	return cmd
}

func formatDuration(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}
