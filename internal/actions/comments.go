package actions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

func validateCommentContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &models.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(content) > store.MaxCommentLength {
		return &models.ValidationError{Field: "content", Reason: fmt.Sprintf("must be at most %d characters", store.MaxCommentLength)}
	}
	return nil
}

// AddComment appends a comment and logs comment_added.
func (s *Service) AddComment(ctx context.Context, taskID, agentID, content string) (*models.Comment, error) {
	if agentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	if err := validateCommentContent(content); err != nil {
		return nil, err
	}

	now := s.now()
	var comment *models.Comment
	err := s.transact(ctx, "addComment", func(tx *sql.Tx) error {
		var txErr error
		comment, txErr = store.AddCommentTx(tx, taskID, agentID, content, now)
		if txErr != nil {
			return txErr
		}
		_, txErr = store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID:     taskID,
			AgentID:    agentID,
			FilePath:   models.TaskChangelogPath(taskID),
			ChangeType: models.ChangeCommentAdded,
			Summary:    "comment added",
		}, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// UpdateComment replaces a comment's content.
func (s *Service) UpdateComment(ctx context.Context, commentID, content string) (*models.Comment, error) {
	if err := validateCommentContent(content); err != nil {
		return nil, err
	}

	now := s.now()
	var comment *models.Comment
	err := s.transact(ctx, "updateComment", func(tx *sql.Tx) error {
		var txErr error
		comment, txErr = store.UpdateCommentTx(tx, commentID, content, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment.
func (s *Service) DeleteComment(ctx context.Context, commentID string) error {
	return s.transact(ctx, "deleteComment", func(tx *sql.Tx) error {
		return store.DeleteCommentTx(tx, commentID)
	})
}

// ListComments returns a task's comments oldest-first.
func (s *Service) ListComments(_ context.Context, taskID string) ([]*models.Comment, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}
	return store.ListComments(s.DB, taskID)
}
