package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/output"
)

// NewWipCmd creates the WIP limit command group.
func NewWipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wip",
		Short: "Manage WIP limits per board column",
	}

	set := &cobra.Command{
		Use:   "set <status> <max-tasks>",
		Short: "Set a WIP limit (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxTasks, err := strconv.Atoi(args[1])
			if err != nil {
				return cmdErr(&models.ValidationError{Field: "maxTasks", Reason: "must be an integer"})
			}
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if err := svc.SetWipLimit(ctx, models.TaskStatus(args[0]), maxTasks); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]any{"status": args[0], "maxTasks": maxTasks})
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show live counts against configured limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				wip, err := svc.GetWipStatus(ctx)
				if err != nil {
					return err
				}
				return output.PrintSuccess(wip)
			})
		},
	}

	cmd.AddCommand(set, status)
	return cmd
}
