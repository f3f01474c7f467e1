package main

import (
	"fmt"
	"os"

	"github.com/mailsift/mailsift/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "mailsift-configure",
		Short: "Configuration tool for the mail triage pipeline",
		Long:  "CLI tool for managing sender rules, rule suggestions and run status",
	}

	rootCmd.AddCommand(commands.NewRulesCmd())
	rootCmd.AddCommand(commands.NewSuggestionsCmd())
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewRunsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
