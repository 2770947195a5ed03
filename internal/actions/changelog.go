package actions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// LogChange appends one audit row for an external file change and emits
// changelog.logged. Task-lifecycle rows are written internally by the task
// operations; callers normally log only the file vocabulary here.
func (s *Service) LogChange(ctx context.Context, p store.ChangelogParams) (*models.ChangelogEntry, error) {
	if p.AgentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.FilePath) == "" {
		return nil, &models.ValidationError{Field: "filePath", Reason: "must not be empty"}
	}
	if !p.ChangeType.IsValid() {
		return nil, &models.ValidationError{Field: "changeType", Reason: fmt.Sprintf("unknown change type %q", p.ChangeType)}
	}
	if strings.TrimSpace(p.Summary) == "" {
		return nil, &models.ValidationError{Field: "summary", Reason: "must not be empty"}
	}

	now := s.now()
	var entry *models.ChangelogEntry
	err := s.transact(ctx, "logChange", func(tx *sql.Tx) error {
		var txErr error
		entry, txErr = store.AppendChangelogTx(tx, p, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.EventChangelogLogged, now, entry)
	return entry, nil
}

// SearchChangelog returns matching audit rows newest-first.
func (s *Service) SearchChangelog(_ context.Context, f store.ChangelogFilters) ([]*models.ChangelogEntry, error) {
	return store.SearchChangelog(s.DB, f)
}

// GetFileHistory returns the audit trail for one path.
func (s *Service) GetFileHistory(_ context.Context, filePath string, limit int) ([]*models.ChangelogEntry, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, &models.ValidationError{Field: "filePath", Reason: "must not be empty"}
	}
	return store.GetFileHistory(s.DB, filePath, limit)
}
