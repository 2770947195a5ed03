package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// MaxCommentLength bounds comment content.
const MaxCommentLength = 4096

// AddCommentTx appends a comment to a task.
func AddCommentTx(tx *sql.Tx, taskID, agentID, content string, now int64) (*models.Comment, error) {
	exists, err := TaskExistsTx(tx, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &models.NotFoundError{Entity: "task", ID: taskID}
	}

	id := NewID("comment")
	_, err = tx.Exec(`
		INSERT INTO comments (id, task_id, agent_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, taskID, agentID, content, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	return getCommentByQuerier(tx, id)
}

// UpdateCommentTx replaces a comment's content.
func UpdateCommentTx(tx *sql.Tx, commentID, content string, now int64) (*models.Comment, error) {
	res, err := tx.Exec(`
		UPDATE comments SET content = ?, updated_at = ? WHERE id = ?
	`, content, now, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check comment rows affected: %w", err)
	}
	if n == 0 {
		return nil, &models.NotFoundError{Entity: "comment", ID: commentID}
	}
	return getCommentByQuerier(tx, commentID)
}

// DeleteCommentTx removes a comment by id.
func DeleteCommentTx(tx *sql.Tx, commentID string) error {
	res, err := tx.Exec(`DELETE FROM comments WHERE id = ?`, commentID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check comment rows affected: %w", err)
	}
	if n == 0 {
		return &models.NotFoundError{Entity: "comment", ID: commentID}
	}
	return nil
}

// ListComments returns a task's comments oldest-first.
func ListComments(db *sql.DB, taskID string) ([]*models.Comment, error) {
	rows, err := db.Query(`
		SELECT id, task_id, agent_id, content, created_at, updated_at
		FROM comments WHERE task_id = ? ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		c, scanErr := scanCommentRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func getCommentByQuerier(q Querier, id string) (*models.Comment, error) {
	row := q.QueryRow(`
		SELECT id, task_id, agent_id, content, created_at, updated_at
		FROM comments WHERE id = ?
	`, id)
	c, err := scanCommentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "comment", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comment: %w", err)
	}
	return c, nil
}

func scanCommentRow(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	var updatedAt sql.NullInt64
	if err := row.Scan(&c.ID, &c.TaskID, &c.AgentID, &c.Content, &c.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	c.UpdatedAt = scanNullInt64(updatedAt)
	return &c, nil
}
