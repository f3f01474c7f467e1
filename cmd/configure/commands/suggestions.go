package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/triage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSuggestionsCmd creates the suggestions command group
func NewSuggestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Review rule suggestions",
		Long:  "List, approve or reject rule suggestions mined from your corrections",
	}

	cmd.AddCommand(newSuggestionsListCmd())
	cmd.AddCommand(newSuggestionsApproveCmd())
	cmd.AddCommand(newSuggestionsRejectCmd())

	return cmd
}

func newSuggestionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending rule suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := openDeps(ctx, false)
			if err != nil {
				return err
			}
			defer d.close()

			repo := database.NewSuggestionRepository(d.db)
			suggestions, err := repo.GetAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to list suggestions: %w", err)
			}

			if len(suggestions) == 0 {
				fmt.Println("No pending suggestions")
				return nil
			}

			fmt.Printf("Pending suggestions (%d):\n", len(suggestions))
			for _, s := range suggestions {
				fmt.Printf("  %s\n", s.ID)
				fmt.Printf("    Rule: %s -> %s\n", s.Sender, s.Label)
				fmt.Printf("    Evidence: %s\n", s.Evidence)
				fmt.Println()
			}
			return nil
		},
	}
}

func newSuggestionsApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <suggestion-id>",
		Short: "Approve a suggestion, promoting it into a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid suggestion ID: %w", err)
			}

			ctx := context.Background()
			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			repo := database.NewSuggestionRepository(d.db)
			s, err := repo.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load suggestion: %w", err)
			}

			ruleRepo := database.NewRuleRepository(d.db)
			rules := triage.NewRuleTable(ruleRepo, d.store, d.cfg.RuleCacheTTL, zap.NewNop())
			if err := rules.Add(ctx, s.Sender, s.Label); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			if err := repo.Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to remove approved suggestion: %w", err)
			}

			fmt.Printf("Approved: %s -> %s is now a rule\n", s.Sender, s.Label)
			return nil
		},
	}
}

func newSuggestionsRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <suggestion-id>",
		Short: "Reject a suggestion",
		Long:  "Reject a suggestion. The sender/label pair is suppressed for a week so it is not immediately re-proposed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid suggestion ID: %w", err)
			}

			ctx := context.Background()
			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			repo := database.NewSuggestionRepository(d.db)
			s, err := repo.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load suggestion: %w", err)
			}

			rejections := triage.NewRejectionCache(d.store, d.cfg.RejectionCacheTTL)
			if err := rejections.Reject(ctx, s.Sender, s.Label); err != nil {
				return fmt.Errorf("failed to record rejection: %w", err)
			}

			if err := repo.Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to remove rejected suggestion: %w", err)
			}

			fmt.Printf("Rejected: %s -> %s\n", s.Sender, s.Label)
			return nil
		},
	}
}
