package actions

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// AddBlocker records a blocker and logs blocker_added.
func (s *Service) AddBlocker(ctx context.Context, taskID, agentID, description, blockingTaskID string) (*models.Blocker, error) {
	if agentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(description) == "" {
		return nil, &models.ValidationError{Field: "description", Reason: "must not be empty"}
	}

	now := s.now()
	var blocker *models.Blocker
	err := s.transact(ctx, "addBlocker", func(tx *sql.Tx) error {
		var txErr error
		blocker, txErr = store.AddBlockerTx(tx, taskID, agentID, description, blockingTaskID, now)
		if txErr != nil {
			return txErr
		}
		_, txErr = store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID:     taskID,
			AgentID:    agentID,
			FilePath:   models.TaskChangelogPath(taskID),
			ChangeType: models.ChangeBlockerAdded,
			Summary:    "blocker added: " + description,
		}, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return blocker, nil
}

// ResolveBlocker marks a blocker resolved and logs blocker_resolved. Resolving
// an already-resolved blocker returns the current record without logging.
func (s *Service) ResolveBlocker(ctx context.Context, blockerID, agentID string) (*models.Blocker, error) {
	now := s.now()
	var blocker *models.Blocker
	err := s.transact(ctx, "resolveBlocker", func(tx *sql.Tx) error {
		var (
			resolved bool
			txErr    error
		)
		blocker, resolved, txErr = store.ResolveBlockerTx(tx, blockerID, now)
		if txErr != nil || !resolved {
			return txErr
		}
		_, txErr = store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID:     blocker.TaskID,
			AgentID:    orSystem(agentID),
			FilePath:   models.TaskChangelogPath(blocker.TaskID),
			ChangeType: models.ChangeBlockerResolved,
			Summary:    "blocker resolved: " + blocker.Description,
		}, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return blocker, nil
}

// ListBlockers returns a task's blockers, optionally only unresolved ones.
func (s *Service) ListBlockers(_ context.Context, taskID string, unresolvedOnly bool) ([]*models.Blocker, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}
	return store.ListBlockers(s.DB, taskID, unresolvedOnly)
}

// CountUnresolvedBlockers is exposed for board chips.
func (s *Service) CountUnresolvedBlockers(_ context.Context, taskID string) (int, error) {
	return store.CountUnresolvedBlockers(s.DB, taskID)
}
