package actions

import (
	"context"
	"database/sql"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// AddDependency adds a depends_on edge and logs dependency_added. Fails with
// SELF_DEPENDENCY, DUPLICATE, or CYCLE per the edge invariants.
func (s *Service) AddDependency(ctx context.Context, taskID, dependsOnTaskID, agentID string) (*models.TaskDependency, error) {
	now := s.now()
	var dep *models.TaskDependency
	err := s.transact(ctx, "addDependency", func(tx *sql.Tx) error {
		var txErr error
		dep, txErr = store.AddDependencyTx(tx, taskID, dependsOnTaskID, s.Settings.DepClosureMaxDepth, now)
		if txErr != nil {
			return txErr
		}
		_, txErr = store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID:     taskID,
			AgentID:    orSystem(agentID),
			FilePath:   models.TaskChangelogPath(taskID),
			ChangeType: models.ChangeDependencyAdded,
			Summary:    "depends on " + dependsOnTaskID,
		}, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// RemoveDependency deletes a depends_on edge and logs dependency_removed.
func (s *Service) RemoveDependency(ctx context.Context, taskID, dependsOnTaskID, agentID string) error {
	now := s.now()
	return s.transact(ctx, "removeDependency", func(tx *sql.Tx) error {
		if err := store.RemoveDependencyTx(tx, taskID, dependsOnTaskID); err != nil {
			return err
		}
		_, err := store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID:     taskID,
			AgentID:    orSystem(agentID),
			FilePath:   models.TaskChangelogPath(taskID),
			ChangeType: models.ChangeDependencyRemoved,
			Summary:    "no longer depends on " + dependsOnTaskID,
		}, now)
		return err
	})
}

// GetDependencies returns the direct depends_on task ids.
func (s *Service) GetDependencies(_ context.Context, taskID string) ([]string, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}
	return store.GetDependencies(s.DB, taskID)
}

// GetDependents returns the direct task ids depending on taskID.
func (s *Service) GetDependents(_ context.Context, taskID string) ([]string, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}
	return store.GetDependents(s.DB, taskID)
}
