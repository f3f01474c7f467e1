package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/triage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRulesCmd creates the rules command group
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage sender rules",
		Long:  "List and add sender-to-label rules that bypass the classifier",
	}

	cmd.AddCommand(newRulesListCmd())
	cmd.AddCommand(newRulesAddCmd())

	return cmd
}

func newRulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all sender rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := openDeps(ctx, false)
			if err != nil {
				return err
			}
			defer d.close()

			ruleRepo := database.NewRuleRepository(d.db)
			rules, err := ruleRepo.GetAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println("No rules configured")
				return nil
			}

			fmt.Printf("Configured rules (%d):\n", len(rules))
			for _, rule := range rules {
				fmt.Printf("  %s -> %s\n", rule.Sender, rule.Label)
			}
			return nil
		},
	}
}

func newRulesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <sender> <label>",
		Short: "Add or replace a sender rule",
		Long:  "Add a rule mapping a sender address to a label. An existing rule for the sender is replaced.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sender := strings.TrimSpace(args[0])
			labelName := args[1]

			if !models.IsVocabulary(labelName) {
				return fmt.Errorf("unknown label %q; valid labels: %s",
					labelName, strings.Join(models.VocabularyNames(), ", "))
			}

			ctx := context.Background()
			d, err := openDeps(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			ruleRepo := database.NewRuleRepository(d.db)
			rules := triage.NewRuleTable(ruleRepo, d.store, d.cfg.RuleCacheTTL, zap.NewNop())
			if err := rules.Add(ctx, sender, models.Label(labelName)); err != nil {
				return fmt.Errorf("failed to add rule: %w", err)
			}

			fmt.Printf("Rule added: %s -> %s\n", strings.ToLower(sender), labelName)
			return nil
		},
	}
}
