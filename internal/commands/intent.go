package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/output"
)

// NewIntentCmd creates the intent command group.
func NewIntentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intent",
		Short: "Declare and inspect work intents",
		Long:  "An intent declares the files an agent plans to touch for a task. Posting one is the precondition for claiming those files.",
	}

	cmd.AddCommand(newIntentPostCmd())
	cmd.AddCommand(newIntentListCmd())

	return cmd
}

func newIntentPostCmd() *cobra.Command {
	var (
		files      []string
		boundaries string
		criteria   string
	)

	cmd := &cobra.Command{
		Use:   "post <task-id>",
		Short: "Post an intent for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				intent, err := svc.PostIntent(ctx, actions.PostIntentInput{
					TaskID:             args[0],
					AgentID:            agentFromFlags(cmd),
					Files:              files,
					Boundaries:         boundaries,
					AcceptanceCriteria: criteria,
				})
				if err != nil {
					return err
				}
				return output.PrintSuccess(intent)
			})
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "File the agent plans to touch (repeatable, required)")
	cmd.Flags().StringVar(&boundaries, "boundaries", "", "Paths the agent promises not to touch")
	cmd.Flags().StringVar(&criteria, "criteria", "", "Acceptance criteria (required)")

	return cmd
}

func newIntentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's intents newest-first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				intents, err := svc.ListIntents(ctx, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(intents)
			})
		},
	}
}
