package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/output"
)

// NewWebhookCmd creates the webhook command group.
func NewWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage HTTP sinks for coordination events",
	}

	var events []string
	add := &cobra.Command{
		Use:   "add <url>",
		Short: "Register a webhook (no --event means all events)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				hook, err := svc.RegisterWebhook(ctx, args[0], events)
				if err != nil {
					return err
				}
				return output.PrintSuccess(hook)
			})
		},
	}
	add.Flags().StringSliceVar(&events, "event", nil, "Event type to subscribe to (repeatable)")

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				hooks, err := svc.ListWebhooks(ctx, activeOnly)
				if err != nil {
					return err
				}
				return output.PrintSuccess(hooks)
			})
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "Only active webhooks")

	var disable bool
	toggle := &cobra.Command{
		Use:   "enable <webhook-id>",
		Short: "Enable or disable delivery for a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if err := svc.SetWebhookActive(ctx, args[0], !disable); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]any{"id": args[0], "active": !disable})
			})
		},
	}
	toggle.Flags().BoolVar(&disable, "off", false, "Disable instead of enable")

	remove := &cobra.Command{
		Use:   "remove <webhook-id>",
		Short: "Unregister a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if err := svc.DeleteWebhook(ctx, args[0]); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]bool{"deleted": true})
			})
		},
	}

	var limit int
	deliveries := &cobra.Command{
		Use:   "deliveries <webhook-id>",
		Short: "Show recent delivery attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				attempts, err := svc.ListDeliveries(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return output.PrintSuccess(attempts)
			})
		},
	}
	deliveries.Flags().IntVar(&limit, "limit", 0, "Max results (default 50)")

	cmd.AddCommand(add, list, toggle, remove, deliveries)
	return cmd
}
