package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show last run summary and daily quota usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := openDeps(ctx, false)
			if err != nil {
				return err
			}
			defer d.close()

			stateRepo := database.NewStateRepository(d.db)
			ruleRepo := database.NewRuleRepository(d.db)
			suggestionRepo := database.NewSuggestionRepository(d.db)

			loc, err := time.LoadLocation(d.cfg.Timezone)
			if err != nil {
				return fmt.Errorf("failed to load timezone %q: %w", d.cfg.Timezone, err)
			}
			today := time.Now().In(loc).Format("2006-01-02")

			// Read the ledger without triggering a rollover write; status
			// must stay side-effect free.
			storedDate, err := stateRepo.Get(ctx, database.StateKeyLastRunDate)
			if err != nil {
				return fmt.Errorf("failed to read ledger date: %w", err)
			}
			dailyCount := "0"
			if storedDate == today {
				if v, err := stateRepo.Get(ctx, database.StateKeyDailyCallCount); err == nil && v != "" {
					dailyCount = v
				}
			}
			fmt.Printf("Daily API calls (%s): %s / %d\n", today, dailyCount, d.cfg.APICallSafetyLimit)

			ruleCount, err := ruleRepo.Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to count rules: %w", err)
			}
			fmt.Printf("Sender rules: %d\n", ruleCount)

			suggestions, err := suggestionRepo.GetAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to list suggestions: %w", err)
			}
			fmt.Printf("Pending suggestions: %d\n", len(suggestions))

			raw, err := stateRepo.Get(ctx, database.StateKeyLastRunSummary)
			if err != nil {
				return fmt.Errorf("failed to read last run record: %w", err)
			}
			if raw == "" {
				fmt.Println("\nNo runs recorded yet")
				return nil
			}

			var last models.LastRun
			if err := json.Unmarshal([]byte(raw), &last); err != nil {
				return fmt.Errorf("failed to parse last run record: %w", err)
			}

			fmt.Println("\nLast run:")
			fmt.Printf("  Finished: %s\n", last.Timestamp.In(loc).Format(time.RFC1123))
			fmt.Printf("  Stop reason: %s\n", last.Status)
			fmt.Printf("  Processed: %d items\n", last.Processed)

			runLogRepo := database.NewRunLogRepository(d.db)
			recent, err := runLogRepo.Recent(ctx, 1)
			if err != nil {
				return fmt.Errorf("failed to read run history: %w", err)
			}
			if len(recent) == 0 {
				return nil
			}
			summary := recent[0]

			fmt.Printf("  Batches: %d\n", summary.Batches)
			fmt.Printf("  Most frequent sender: %s\n", summary.MostFrequentSender)
			fmt.Printf("  Average batch: %.1fs, total runtime: %.1fs\n",
				summary.AverageBatchSeconds, summary.TotalRuntimeSeconds)
			fmt.Println("  Labels applied:")
			for _, label := range models.VocabularyNames() {
				fmt.Printf("    %-20s %d\n", label, summary.LabelCounts[label])
			}
			fmt.Printf("    %-20s %d\n", models.TallyViaRule, summary.LabelCounts[models.TallyViaRule])
			fmt.Printf("    %-20s %d\n", models.TallyViaCache, summary.LabelCounts[models.TallyViaCache])
			return nil
		},
	}
}
