package actions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// SetWipLimit upserts the WIP limit for a status; maxTasks <= 0 removes it.
func (s *Service) SetWipLimit(ctx context.Context, status models.TaskStatus, maxTasks int) error {
	if !status.IsValid() || status == models.TaskStatusCancelled {
		return &models.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot set a WIP limit on %q", status)}
	}
	now := s.now()
	return s.transact(ctx, "setWipLimit", func(tx *sql.Tx) error {
		return store.SetWipLimitTx(tx, status, maxTasks, now)
	})
}

// GetWipLimit returns the limit for one status, or nil when unset.
func (s *Service) GetWipLimit(_ context.Context, status models.TaskStatus) (*models.WipLimit, error) {
	return store.GetWipLimit(s.DB, status)
}

// ListWipLimits returns every configured limit.
func (s *Service) ListWipLimits(_ context.Context) ([]*models.WipLimit, error) {
	return store.ListWipLimits(s.DB)
}

// GetWipStatus reports live counts against every configured limit.
func (s *Service) GetWipStatus(_ context.Context) ([]*store.WipStatus, error) {
	return store.GetWipStatus(s.DB)
}
