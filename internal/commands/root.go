// Package commands is the cobra CLI over the coordination facade. Every
// command prints a JSON envelope so agents can parse output mechanically.
package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/app"
	"github.com/dotcommander/scrum/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:           "scrum",
		Short:         "Coordination service for concurrent coding agents (tasks, intents, claims, evidence)",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}

			// Wire --db-path into the app-level resolver.
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}

			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override database path")
	root.PersistentFlags().StringP("agent", "a", "", "Agent ID (default: $SCRUM_AGENT)")
	root.Flags().BoolP("version", "v", false, "version for scrum")

	root.AddCommand(NewTaskCmd())
	root.AddCommand(NewIntentCmd())
	root.AddCommand(NewClaimCmd())
	root.AddCommand(NewEvidenceCmd())
	root.AddCommand(NewLogCmd())
	root.AddCommand(NewComplianceCmd())
	root.AddCommand(NewAgentCmd())
	root.AddCommand(NewWipCmd())
	root.AddCommand(NewTemplateCmd())
	root.AddCommand(NewWebhookCmd())
	root.AddCommand(NewMetricsCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewDemoCmd())

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}
