package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/output"
)

// NewClaimCmd creates the claim command group.
func NewClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Manage file claims (exclusive leases with TTLs)",
	}

	cmd.AddCommand(newClaimCreateCmd())
	cmd.AddCommand(newClaimReleaseCmd())
	cmd.AddCommand(newClaimExtendCmd())
	cmd.AddCommand(newClaimListCmd())
	cmd.AddCommand(newClaimOverlapCmd())

	return cmd
}

func newClaimCreateCmd() *cobra.Command {
	var (
		files []string
		ttl   int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Claim files (requires a covering intent; fails on conflict)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				claim, err := svc.CreateClaim(ctx, agentFromFlags(cmd), files, ttl)
				if err != nil {
					return err
				}
				return output.PrintSuccess(claim)
			})
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "File to claim (repeatable, required)")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "Lease TTL in seconds (default from config, clamped to [5, 3600])")

	return cmd
}

func newClaimReleaseCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release claims (requires evidence and a clean compliance check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				released, err := svc.ReleaseClaims(ctx, agentFromFlags(cmd), files)
				if err != nil {
					return err
				}
				return output.PrintSuccess(map[string]int64{"released": released})
			})
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "File to release (repeatable; omit to release all)")

	return cmd
}

func newClaimExtendCmd() *cobra.Command {
	var (
		files   []string
		seconds int
	)

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Extend live claim leases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				ext, err := svc.ExtendClaims(ctx, agentFromFlags(cmd), seconds, files)
				if err != nil {
					return err
				}
				return output.PrintSuccess(ext)
			})
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "File to extend (repeatable; omit to extend all)")
	cmd.Flags().IntVar(&seconds, "seconds", 0, "Additional seconds (clamped to [30, 3600])")

	return cmd
}

func newClaimListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active claims grouped per agent (prunes expired rows)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				claims, err := svc.ListActiveClaims(ctx)
				if err != nil {
					return err
				}
				return output.PrintSuccess(claims)
			})
		},
	}
}

func newClaimOverlapCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "overlap",
		Short: "Check which files are actively claimed, without claiming",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				overlaps, err := svc.CheckOverlap(ctx, files)
				if err != nil {
					return err
				}
				return output.PrintSuccess(overlaps)
			})
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "File to check (repeatable, required)")

	return cmd
}
