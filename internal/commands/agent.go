package commands

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/output"
)

// NewAgentCmd creates the agent command group.
func NewAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage the agent registry",
	}

	cmd.AddCommand(newAgentRegisterCmd())
	cmd.AddCommand(newAgentListCmd())

	return cmd
}

func newAgentRegisterCmd() *cobra.Command {
	var (
		capabilities []string
		metadata     string
	)

	cmd := &cobra.Command{
		Use:     "register [agent-id]",
		Aliases: []string{"heartbeat"},
		Short:   "Register an agent or refresh its heartbeat",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID := agentFromFlags(cmd)
			if len(args) == 1 {
				agentID = args[0]
			}
			return withService(func(ctx context.Context, svc *actions.Service) error {
				agent, err := svc.RegisterOrHeartbeat(ctx, agentID, capabilities, json.RawMessage(metadata))
				if err != nil {
					return err
				}
				return output.PrintSuccess(agent)
			})
		},
	}

	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "Agent capability (repeatable)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "Metadata JSON")

	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents with derived liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				agents, err := svc.ListAgents(ctx)
				if err != nil {
					return err
				}
				return output.PrintSuccess(agents)
			})
		},
	}
}
