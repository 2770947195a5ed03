package actions

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// AttachEvidence clips output to the configured bound and appends the
// record, then emits evidence.attached.
func (s *Service) AttachEvidence(ctx context.Context, taskID, agentID, command, output string) (*models.Evidence, error) {
	if agentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(command) == "" {
		return nil, &models.ValidationError{Field: "command", Reason: "must not be empty"}
	}

	clipped := store.ClipOutput(output, s.Settings.OutputClipBytes)

	now := s.now()
	var evidence *models.Evidence
	err := s.transact(ctx, "attachEvidence", func(tx *sql.Tx) error {
		var txErr error
		evidence, txErr = store.AttachEvidenceTx(tx, taskID, agentID, command, clipped, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.EventEvidenceAttached, now, evidence)
	return evidence, nil
}

// ListEvidence returns a task's evidence newest-first.
func (s *Service) ListEvidence(_ context.Context, taskID string) ([]*models.Evidence, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}
	return store.ListEvidence(s.DB, taskID)
}

// ListAllEvidence returns the most recent evidence across tasks.
func (s *Service) ListAllEvidence(_ context.Context, limit int) ([]*models.Evidence, error) {
	return store.ListAllEvidence(s.DB, limit)
}

// HasEvidenceForTask returns the distinct task ids with evidence by agentID.
func (s *Service) HasEvidenceForTask(_ context.Context, agentID string) (*store.EvidenceTaskIDs, error) {
	return store.HasEvidenceForTask(s.DB, agentID)
}
