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

// PostIntentInput declares the files an agent plans to touch for a task.
type PostIntentInput struct {
	TaskID             string
	AgentID            string
	Files              []string
	Boundaries         string
	AcceptanceCriteria string
}

// PostIntent validates and appends an immutable intent, then emits
// intent.posted. Intents are the precondition for claiming files.
func (s *Service) PostIntent(ctx context.Context, in PostIntentInput) (*models.Intent, error) {
	if in.AgentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	files, err := normalizeFileList(in.Files)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(in.AcceptanceCriteria)) < store.MinAcceptanceCriteriaLength {
		return nil, &models.ValidationError{
			Field:  "acceptanceCriteria",
			Reason: fmt.Sprintf("must be at least %d characters", store.MinAcceptanceCriteriaLength),
		}
	}

	now := s.now()
	var intent *models.Intent
	err = s.transact(ctx, "postIntent", func(tx *sql.Tx) error {
		var txErr error
		intent, txErr = store.CreateIntentTx(tx, in.TaskID, in.AgentID, files, in.Boundaries, in.AcceptanceCriteria, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.EventIntentPosted, now, intent)
	return intent, nil
}

// ListIntents returns a task's intents newest-first.
func (s *Service) ListIntents(_ context.Context, taskID string) ([]*models.Intent, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}
	return store.ListIntents(s.DB, taskID)
}

// normalizeFileList trims, drops empties, dedupes, and requires at least one
// path.
func normalizeFileList(files []string) ([]string, error) {
	seen := make(map[string]bool, len(files))
	var out []string
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, &models.ValidationError{Field: "files", Reason: "must contain at least one file path"}
	}
	return out, nil
}
