package commands

import (
	"context"
	"fmt"

	"github.com/mailsift/mailsift/internal/database"
	"github.com/spf13/cobra"
)

// NewRunsCmd creates the runs command
func NewRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := openDeps(ctx, false)
			if err != nil {
				return err
			}
			defer d.close()

			runLogRepo := database.NewRunLogRepository(d.db)
			summaries, err := runLogRepo.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to load run history: %w", err)
			}

			if len(summaries) == 0 {
				fmt.Println("No runs recorded yet")
				return nil
			}

			for _, s := range summaries {
				fmt.Printf("%s  %-12s  processed=%-4d batches=%-3d runtime=%.1fs  daily_calls=%d\n",
					s.Date, s.StopReason, s.TotalProcessed, s.Batches,
					s.TotalRuntimeSeconds, s.FinalDailyCount)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}
