package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/output"
	"github.com/dotcommander/scrum/internal/store"
)

// NewTaskCmd creates the task command group.
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks on the kanban board",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskGetCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskBoardCmd())
	cmd.AddCommand(newTaskReadyCmd())
	cmd.AddCommand(newTaskCommentCmd())
	cmd.AddCommand(newTaskBlockerCmd())
	cmd.AddCommand(newTaskDepCmd())

	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		description string
		priority    string
		status      string
		assign      string
		labels      []string
		points      int
		template    string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if template != "" {
					task, err := svc.InstantiateTemplate(ctx, template, args[0], agentFromFlags(cmd))
					if err != nil {
						return err
					}
					return output.PrintSuccess(task)
				}

				in := actions.CreateTaskInput{
					Title:         args[0],
					Description:   description,
					Priority:      models.TaskPriority(priority),
					Status:        models.TaskStatus(status),
					AssignedAgent: assign,
					Labels:        labels,
					AgentID:       agentFromFlags(cmd),
				}
				if cmd.Flags().Changed("points") {
					in.StoryPoints = &points
				}
				task, err := svc.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				return output.PrintSuccess(task)
			})
		},
	}

	cmd.Flags().StringVar(&description, "desc", "", "Task description")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (critical|high|medium|low)")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (default backlog)")
	cmd.Flags().StringVar(&assign, "assign", "", "Assigned agent")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Labels (repeatable)")
	cmd.Flags().IntVar(&points, "points", 0, "Story points")
	cmd.Flags().StringVar(&template, "template", "", "Instantiate from a named template")

	return cmd
}

func newTaskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				task, err := svc.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(task)
			})
		},
	}
}

func newTaskListCmd() *cobra.Command {
	var (
		status   string
		assigned string
		priority string
		label    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				tasks, err := svc.ListTasks(ctx, store.TaskFilters{
					Status:        models.TaskStatus(status),
					AssignedAgent: assigned,
					Priority:      models.TaskPriority(priority),
					Label:         label,
					Limit:         limit,
				})
				if err != nil {
					return err
				}
				return output.PrintSuccess(tasks)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&assigned, "assigned", "", "Filter by assigned agent")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&label, "label", "", "Filter by label")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")

	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		title     string
		desc      string
		status    string
		priority  string
		assign    string
		points    int
		noDepGate bool
		noWipGate bool
	)

	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task fields (dependency, WIP, and compliance gates apply on status changes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := store.TaskPatch{}
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("desc") {
				patch.Description = &desc
			}
			if cmd.Flags().Changed("status") {
				st := models.TaskStatus(status)
				patch.Status = &st
			}
			if cmd.Flags().Changed("priority") {
				p := models.TaskPriority(priority)
				patch.Priority = &p
			}
			if cmd.Flags().Changed("assign") {
				patch.AssignedAgent = &assign
			}
			if cmd.Flags().Changed("points") {
				patch.StoryPoints = &points
			}

			opts := actions.DefaultUpdateOptions()
			opts.EnforceDependencies = !noDepGate
			opts.EnforceWipLimits = !noWipGate

			return withService(func(ctx context.Context, svc *actions.Service) error {
				result, err := svc.UpdateTask(ctx, args[0], agentFromFlags(cmd), patch, opts)
				if err != nil {
					return err
				}
				return output.PrintSuccess(result)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&desc, "desc", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVar(&priority, "priority", "", "New priority")
	cmd.Flags().StringVar(&assign, "assign", "", "Assigned agent (empty unassigns)")
	cmd.Flags().IntVar(&points, "points", 0, "Story points")
	cmd.Flags().BoolVar(&noDepGate, "no-enforce-deps", false, "Warn instead of failing on incomplete dependencies")
	cmd.Flags().BoolVar(&noWipGate, "no-enforce-wip", false, "Warn instead of failing on WIP limits")

	return cmd
}

func newTaskBoardCmd() *cobra.Command {
	var (
		assigned string
		labels   []string
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the kanban board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				board, err := svc.GetBoard(ctx, store.BoardFilters{AssignedAgent: assigned, Labels: labels})
				if err != nil {
					return err
				}
				return output.PrintSuccess(board)
			})
		},
	}

	cmd.Flags().StringVar(&assigned, "assigned", "", "Filter by assigned agent")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Filter by label (repeatable)")

	return cmd
}

func newTaskReadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ready <task-id>",
		Short: "Check whether a task's transitive dependencies are all done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				readiness, err := svc.IsTaskReady(ctx, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(readiness)
			})
		},
	}
}

func newTaskCommentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Manage task comments",
	}

	add := &cobra.Command{
		Use:   "add <task-id> <content>",
		Short: "Add a comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				comment, err := svc.AddComment(ctx, args[0], agentFromFlags(cmd), args[1])
				if err != nil {
					return err
				}
				return output.PrintSuccess(comment)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List comments oldest-first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				comments, err := svc.ListComments(ctx, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(comments)
			})
		},
	}

	update := &cobra.Command{
		Use:   "update <comment-id> <content>",
		Short: "Replace a comment's content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				comment, err := svc.UpdateComment(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return output.PrintSuccess(comment)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if err := svc.DeleteComment(ctx, args[0]); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]bool{"deleted": true})
			})
		},
	}

	cmd.AddCommand(add, list, update, remove)
	return cmd
}

func newTaskBlockerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocker",
		Short: "Manage task blockers",
	}

	var blockingTask string
	add := &cobra.Command{
		Use:   "add <task-id> <description>",
		Short: "Record a blocker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				blocker, err := svc.AddBlocker(ctx, args[0], agentFromFlags(cmd), args[1], blockingTask)
				if err != nil {
					return err
				}
				return output.PrintSuccess(blocker)
			})
		},
	}
	add.Flags().StringVar(&blockingTask, "blocking-task", "", "Task that causes the blockage")

	resolve := &cobra.Command{
		Use:   "resolve <blocker-id>",
		Short: "Resolve a blocker (no-op if already resolved)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				blocker, err := svc.ResolveBlocker(ctx, args[0], agentFromFlags(cmd))
				if err != nil {
					return err
				}
				return output.PrintSuccess(blocker)
			})
		},
	}

	var unresolvedOnly bool
	list := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List blockers newest-first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				blockers, err := svc.ListBlockers(ctx, args[0], unresolvedOnly)
				if err != nil {
					return err
				}
				return output.PrintSuccess(blockers)
			})
		},
	}
	list.Flags().BoolVar(&unresolvedOnly, "unresolved", false, "Only unresolved blockers")

	cmd.AddCommand(add, resolve, list)
	return cmd
}

func newTaskDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies",
	}

	add := &cobra.Command{
		Use:   "add <task-id> <depends-on-task-id>",
		Short: "Add a depends_on edge (rejects self-edges, duplicates, cycles)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				dep, err := svc.AddDependency(ctx, args[0], args[1], agentFromFlags(cmd))
				if err != nil {
					return err
				}
				return output.PrintSuccess(dep)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <task-id> <depends-on-task-id>",
		Short: "Remove a depends_on edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if err := svc.RemoveDependency(ctx, args[0], args[1], agentFromFlags(cmd)); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]bool{"removed": true})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <task-id>",
		Short: "Show direct dependencies and dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				deps, err := svc.GetDependencies(ctx, args[0])
				if err != nil {
					return err
				}
				dependents, err := svc.GetDependents(ctx, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(map[string][]string{
					"dependsOn": deps, "dependedOnBy": dependents,
				})
			})
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}
