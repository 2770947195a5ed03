package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/app"
	"github.com/dotcommander/scrum/internal/output"
	"github.com/dotcommander/scrum/internal/store"
)

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the JSON envelope is the output.
	return "error already printed"
}

// newService opens the database and wires a facade over it.
func newService() (*actions.Service, func(), error) {
	settings, err := app.LoadSettings()
	if err != nil {
		return nil, nil, err
	}

	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.InitDBWithPath(dbPath)
	if err != nil {
		return nil, nil, err
	}

	svc := actions.NewService(db, store.SystemClock{}, nil, settings, slog.Default())
	return svc, func() { _ = db.Close() }, nil
}

// withService runs fn over a freshly wired facade and renders errors as
// envelopes on stdout.
func withService(fn func(ctx context.Context, svc *actions.Service) error) error {
	svc, closeDB, err := newService()
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(context.Background(), svc); err != nil {
		return cmdErr(err)
	}
	return nil
}

// cmdErr prints the envelope for err and marks it printed so the root
// command does not log it twice.
func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	_ = output.PrintError(err)
	return printedError{err: err}
}

// agentFromFlags resolves the acting agent: --agent flag, then $SCRUM_AGENT.
func agentFromFlags(cmd *cobra.Command) string {
	if agent, err := cmd.Flags().GetString("agent"); err == nil && agent != "" {
		return agent
	}
	return os.Getenv("SCRUM_AGENT")
}
