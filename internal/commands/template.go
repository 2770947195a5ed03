package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/output"
	"github.com/dotcommander/scrum/internal/store"
)

// NewTemplateCmd creates the task template command group.
func NewTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage reusable task templates",
	}

	var (
		prefix   string
		desc     string
		priority string
		labels   []string
		points   int
	)
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := store.TemplateParams{
				Name:        args[0],
				TitlePrefix: prefix,
				Description: desc,
				Priority:    models.TaskPriority(priority),
				Labels:      labels,
			}
			if cmd.Flags().Changed("points") {
				p.StoryPoints = &points
			}
			return withService(func(ctx context.Context, svc *actions.Service) error {
				tmpl, err := svc.CreateTemplate(ctx, p)
				if err != nil {
					return err
				}
				return output.PrintSuccess(tmpl)
			})
		},
	}
	create.Flags().StringVar(&prefix, "prefix", "", "Title prefix for instantiated tasks")
	create.Flags().StringVar(&desc, "desc", "", "Default description")
	create.Flags().StringVar(&priority, "priority", "", "Default priority")
	create.Flags().StringSliceVar(&labels, "label", nil, "Default labels (repeatable)")
	create.Flags().IntVar(&points, "points", 0, "Default story points")

	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				templates, err := svc.ListTemplates(ctx)
				if err != nil {
					return err
				}
				return output.PrintSuccess(templates)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if err := svc.DeleteTemplate(ctx, args[0]); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]bool{"deleted": true})
			})
		},
	}

	cmd.AddCommand(create, list, remove)
	return cmd
}
