package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// scanNullString converts sql.NullString to string (empty if NULL)
func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// scanNullInt64 converts sql.NullInt64 to *int64 (nil if NULL)
func scanNullInt64(ni sql.NullInt64) *int64 {
	if ni.Valid {
		v := ni.Int64
		return &v
	}
	return nil
}

// scanNullInt converts sql.NullInt64 to *int (nil if NULL)
func scanNullInt(ni sql.NullInt64) *int {
	if ni.Valid {
		v := int(ni.Int64)
		return &v
	}
	return nil
}

// encodeStringList marshals a string slice to its JSON column form.
// nil encodes as "[]" so columns never hold SQL NULL for list values.
func encodeStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list column: %w", err)
	}
	return string(b), nil
}

// decodeStringList unmarshals a JSON list column. Empty or NULL yields nil.
func decodeStringList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode list column: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// rowScanner is the minimal surface shared by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// taskColumns is the canonical select list for task rows. Keep in sync with
// scanTaskRow.
const taskColumns = `id, title, description, status, priority, assigned_agent, due_date, labels, story_points, created_at, started_at, completed_at, updated_at`

// scanTaskRow scans and hydrates one task from a row using taskColumns order.
func scanTaskRow(row rowScanner) (*models.Task, error) {
	var (
		task        models.Task
		assigned    sql.NullString
		dueDate     sql.NullInt64
		labelsRaw   string
		storyPoints sql.NullInt64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
		updatedAt   sql.NullInt64
	)

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&assigned,
		&dueDate,
		&labelsRaw,
		&storyPoints,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.AssignedAgent = scanNullString(assigned)
	task.DueDate = scanNullInt64(dueDate)
	task.StoryPoints = scanNullInt(storyPoints)
	task.StartedAt = scanNullInt64(startedAt)
	task.CompletedAt = scanNullInt64(completedAt)
	task.UpdatedAt = scanNullInt64(updatedAt)

	labels, err := decodeStringList(labelsRaw)
	if err != nil {
		return nil, err
	}
	task.Labels = labels

	return &task, nil
}
