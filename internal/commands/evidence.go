package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/output"
)

// NewEvidenceCmd creates the evidence command group.
func NewEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Attach and inspect evidence (command + output artifacts)",
	}

	cmd.AddCommand(newEvidenceAttachCmd())
	cmd.AddCommand(newEvidenceListCmd())

	return cmd
}

func newEvidenceAttachCmd() *cobra.Command {
	var (
		command   string
		out       string
		fromStdin bool
	)

	cmd := &cobra.Command{
		Use:   "attach <task-id>",
		Short: "Attach evidence to a task (output is clipped server-side)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromStdin {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return cmdErr(err)
				}
				out = string(b)
			}
			return withService(func(ctx context.Context, svc *actions.Service) error {
				evidence, err := svc.AttachEvidence(ctx, args[0], agentFromFlags(cmd), command, out)
				if err != nil {
					return err
				}
				return output.PrintSuccess(evidence)
			})
		},
	}

	cmd.Flags().StringVar(&command, "cmd", "", "Command that was run (required)")
	cmd.Flags().StringVar(&out, "output", "", "Command output")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read output from stdin")

	return cmd
}

func newEvidenceListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list [task-id]",
		Short: "List evidence newest-first (all tasks when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *actions.Service) error {
				if len(args) == 1 {
					evidence, err := svc.ListEvidence(ctx, args[0])
					if err != nil {
						return err
					}
					return output.PrintSuccess(evidence)
				}
				evidence, err := svc.ListAllEvidence(ctx, limit)
				if err != nil {
					return err
				}
				return output.PrintSuccess(evidence)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (default 100)")

	return cmd
}
