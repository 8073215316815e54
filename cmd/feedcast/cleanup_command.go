package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"feedcast/internal/config"
	"feedcast/internal/store"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old items that were never used in an episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				retention := days
				if retention <= 0 {
					retention = cfg.Store.RetentionDays
				}
				if retention <= 0 {
					return fmt.Errorf("retention not configured; pass --days or set store.retention_days")
				}

				cutoff := time.Now().UTC().AddDate(0, 0, -retention)
				deleted, err := st.DeleteUnusedItemsBefore(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d unused items observed before %s\n", deleted, cutoff.Format("2006-01-02"))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (defaults to store.retention_days)")
	return cmd
}
