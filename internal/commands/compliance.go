package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/output"
)

// NewComplianceCmd creates the compliance command group.
func NewComplianceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Score agent activity against declared intents",
	}

	cmd.AddCommand(newComplianceCheckCmd())

	return cmd
}

func newComplianceCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <task-id>",
		Short: "Derive compliance reports for a task",
		Long:  "Checks intent, evidence, files-match, boundaries, and claim release for one agent, or for every agent that touched the task when --agent is omitted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				reports, err := svc.CheckCompliance(ctx, args[0], agentFromFlags(cmd))
				if err != nil {
					return err
				}
				return output.PrintSuccess(reports)
			})
		},
	}

	return cmd
}
