package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/app"
	"github.com/dotcommander/scrum/internal/demo"
	"github.com/dotcommander/scrum/internal/store"
)

// NewDemoCmd creates the demo command: a scripted two-agent walkthrough of
// the coordination protocol against a scratch database.
func NewDemoCmd() *cobra.Command {
	var fast bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted two-agent coordination walkthrough",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.MkdirTemp("", "scrum-demo-*")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(dir) }()

			db, err := store.InitDBWithPath(filepath.Join(dir, "demo.db"))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			settings, err := app.LoadSettings()
			if err != nil {
				return err
			}
			svc := actions.NewService(db, store.SystemClock{}, nil, settings, slog.Default())

			return demo.NewRunner(svc, os.Stdout, fast).Run(context.Background())
		},
	}

	cmd.Flags().BoolVar(&fast, "fast", false, "Skip the dramatic pauses")
	return cmd
}
