package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/output"
	"github.com/dotcommander/scrum/internal/store"
)

// NewLogCmd creates the changelog command group.
func NewLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Append to and search the audit changelog",
	}

	cmd.AddCommand(newLogAddCmd())
	cmd.AddCommand(newLogSearchCmd())
	cmd.AddCommand(newLogHistoryCmd())

	return cmd
}

func newLogAddCmd() *cobra.Command {
	var (
		taskID     string
		changeType string
		summary    string
		diff       string
		commit     string
	)

	cmd := &cobra.Command{
		Use:   "add <file-path>",
		Short: "Log a file change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				entry, err := svc.LogChange(ctx, store.ChangelogParams{
					TaskID:      taskID,
					AgentID:     agentFromFlags(cmd),
					FilePath:    args[0],
					ChangeType:  models.ChangeType(changeType),
					Summary:     summary,
					DiffSnippet: diff,
					CommitHash:  commit,
				})
				if err != nil {
					return err
				}
				return output.PrintSuccess(entry)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Associated task ID")
	cmd.Flags().StringVar(&changeType, "type", "modify", "Change type (create|modify|delete)")
	cmd.Flags().StringVar(&summary, "summary", "", "Change summary (required)")
	cmd.Flags().StringVar(&diff, "diff", "", "Diff snippet")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit hash")

	return cmd
}

func newLogSearchCmd() *cobra.Command {
	var (
		filePath   string
		agentID    string
		taskID     string
		changeType string
		since      int64
		until      int64
		query      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the changelog newest-first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				entries, err := svc.SearchChangelog(ctx, store.ChangelogFilters{
					FilePath:   filePath,
					AgentID:    agentID,
					TaskID:     taskID,
					ChangeType: models.ChangeType(changeType),
					Since:      since,
					Until:      until,
					Query:      query,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				return output.PrintSuccess(entries)
			})
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "File path substring")
	cmd.Flags().StringVar(&agentID, "by", "", "Filter by agent")
	cmd.Flags().StringVar(&taskID, "task", "", "Filter by task")
	cmd.Flags().StringVar(&changeType, "type", "", "Filter by change type")
	cmd.Flags().Int64Var(&since, "since", 0, "Inclusive lower bound (ms since epoch)")
	cmd.Flags().Int64Var(&until, "until", 0, "Inclusive upper bound (ms since epoch)")
	cmd.Flags().StringVar(&query, "query", "", "Free text over summary and diff")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (default 100)")

	return cmd
}

func newLogHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <file-path>",
		Short: "Show the audit trail for one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				entries, err := svc.GetFileHistory(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return output.PrintSuccess(entries)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (default 100)")

	return cmd
}
