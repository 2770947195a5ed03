package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/metrics"
	"github.com/dotcommander/scrum/internal/output"
)

// NewMetricsCmd creates the metrics command group.
func NewMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Board throughput, cycle time, and staleness reports",
	}

	board := &cobra.Command{
		Use:   "board",
		Short: "Throughput, cycle/lead time, and WIP by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				m, err := metrics.Board(svc.DB, svc.Clock.NowMs())
				if err != nil {
					return err
				}
				return output.PrintSuccess(m)
			})
		},
	}

	var weeks int
	velocity := &cobra.Command{
		Use:   "velocity",
		Short: "Completed tasks and story points per trailing week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				buckets, err := metrics.Velocity(svc.DB, svc.Clock.NowMs(), weeks)
				if err != nil {
					return err
				}
				return output.PrintSuccess(buckets)
			})
		},
	}
	velocity.Flags().IntVar(&weeks, "weeks", 0, "Number of trailing weeks (default 4)")

	var agingThreshold int64
	aging := &cobra.Command{
		Use:   "aging",
		Short: "Non-terminal tasks with no updates past the threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				tasks, err := metrics.Aging(svc.DB, svc.Clock.NowMs(), agingThreshold)
				if err != nil {
					return err
				}
				return output.PrintSuccess(tasks)
			})
		},
	}
	aging.Flags().Int64Var(&agingThreshold, "threshold-ms", 0, "Staleness threshold in ms (default 3 days)")

	var deadThreshold int64
	dead := &cobra.Command{
		Use:   "dead-work",
		Short: "In-progress tasks with no recent changelog activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				tasks, err := metrics.DeadWork(svc.DB, svc.Clock.NowMs(), deadThreshold)
				if err != nil {
					return err
				}
				return output.PrintSuccess(tasks)
			})
		},
	}
	dead.Flags().Int64Var(&deadThreshold, "threshold-ms", 0, "Inactivity threshold in ms (default 2 days)")

	cmd.AddCommand(board, velocity, aging, dead)
	return cmd
}
