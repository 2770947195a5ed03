// Package actions is the operation facade. Every mutating operation
// validates input, runs its pre-condition gates and writes inside one store
// transaction, then emits changelog rows and bus events. External surfaces
// (CLI, HTTP) call only this package.
package actions

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/dotcommander/scrum/internal/app"
	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// Service composes the store, clock, settings, and event bus.
type Service struct {
	DB       *sql.DB
	Clock    store.Clock
	Bus      *bus.Bus
	Settings app.Settings
	Logger   *slog.Logger
}

// NewService wires a facade. A nil clock defaults to the system clock, a nil
// bus to a fresh one, a nil logger to discard.
func NewService(db *sql.DB, clock store.Clock, b *bus.Bus, settings app.Settings, logger *slog.Logger) *Service {
	if clock == nil {
		clock = store.SystemClock{}
	}
	if b == nil {
		b = bus.New(logger)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{DB: db, Clock: clock, Bus: b, Settings: settings, Logger: logger}
}

func (s *Service) now() int64 { return s.Clock.NowMs() }

// publish emits one event after the triggering transaction has committed.
func (s *Service) publish(eventType string, ts int64, data any) {
	s.Bus.Publish(bus.Event{Type: eventType, Ts: ts, Data: data})
}

// transact runs fn in a write transaction bound to the caller's deadline.
// A deadline that expires before commit surfaces as DEADLINE_EXCEEDED with
// no side effects.
func (s *Service) transact(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	err := store.TransactContext(ctx, s.DB, fn)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &models.DeadlineExceededError{Operation: op}
	}
	return err
}

// systemAgent attributes internally-generated changelog rows when the caller
// did not identify itself.
const systemAgent = "system"

func orSystem(agentID string) string {
	if agentID == "" {
		return systemAgent
	}
	return agentID
}
