package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/server"
)

// NewServeCmd creates the serve command, which runs the HTTP API and the
// webhook dispatcher until interrupted.
func NewServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordination HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := newService()
			if err != nil {
				return cmdErr(err)
			}
			defer closeDB()

			if host == "" {
				host = svc.Settings.BindHost
			}
			if port == 0 {
				port = svc.Settings.BindPort
			}
			addr := fmt.Sprintf("%s:%d", host, port)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(sigCtx)
			g.Go(func() error {
				return server.New(svc, slog.Default()).Run(ctx, addr)
			})
			g.Go(func() error {
				return actions.NewDispatcher(svc, nil).Run(ctx)
			})

			if err := g.Wait(); err != nil && sigCtx.Err() == nil {
				return cmdErr(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Bind host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "Bind port (default from config)")

	return cmd
}
