package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dotcommander/scrum/internal/models"
)

// ChangelogParams carries the fields for one audit row.
type ChangelogParams struct {
	TaskID      string // optional
	AgentID     string
	FilePath    string
	ChangeType  models.ChangeType
	Summary     string
	DiffSnippet string
	CommitHash  string
}

// AppendChangelogTx appends one audit row. The changelog is logically
// append-only: there is no update or delete path, even internally.
func AppendChangelogTx(tx *sql.Tx, p ChangelogParams, now int64) (*models.ChangelogEntry, error) {
	var taskVal any
	if p.TaskID != "" {
		exists, err := TaskExistsTx(tx, p.TaskID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &models.NotFoundError{Entity: "task", ID: p.TaskID}
		}
		taskVal = p.TaskID
	}

	var diffVal, commitVal any
	if p.DiffSnippet != "" {
		diffVal = p.DiffSnippet
	}
	if p.CommitHash != "" {
		commitVal = p.CommitHash
	}

	id := NewID("change")
	_, err := tx.Exec(`
		INSERT INTO changelog (id, task_id, agent_id, file_path, change_type, summary, diff_snippet, commit_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, taskVal, p.AgentID, p.FilePath, p.ChangeType, p.Summary, diffVal, commitVal, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert changelog entry: %w", err)
	}

	return &models.ChangelogEntry{
		ID:          id,
		TaskID:      p.TaskID,
		AgentID:     p.AgentID,
		FilePath:    p.FilePath,
		ChangeType:  p.ChangeType,
		Summary:     p.Summary,
		DiffSnippet: p.DiffSnippet,
		CommitHash:  p.CommitHash,
		CreatedAt:   now,
	}, nil
}

// ChangelogFilters narrows SearchChangelog results. Zero values mean "no
// filter". Since/Until are inclusive millisecond bounds.
type ChangelogFilters struct {
	FilePath   string // substring match
	AgentID    string
	TaskID     string
	ChangeType models.ChangeType
	Since      int64
	Until      int64
	Query      string // free text over summary and diff snippet
	Limit      int
}

// SearchChangelog returns matching audit rows newest-first, default limit 100.
func SearchChangelog(db *sql.DB, f ChangelogFilters) ([]*models.ChangelogEntry, error) {
	var (
		conds []string
		args  []any
	)
	if f.FilePath != "" {
		conds = append(conds, "file_path LIKE ?")
		args = append(args, "%"+f.FilePath+"%")
	}
	if f.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.TaskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.ChangeType != "" {
		conds = append(conds, "change_type = ?")
		args = append(args, f.ChangeType)
	}
	if f.Since > 0 {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since)
	}
	if f.Until > 0 {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.Until)
	}
	if f.Query != "" {
		conds = append(conds, "(summary LIKE ? OR diff_snippet LIKE ?)")
		args = append(args, "%"+f.Query+"%", "%"+f.Query+"%")
	}

	query := `SELECT id, task_id, agent_id, file_path, change_type, summary, diff_snippet, commit_hash, created_at FROM changelog`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	return queryChangelog(db, query, args...)
}

// GetFileHistory is a convenience wrapper over SearchChangelog for one path.
func GetFileHistory(db *sql.DB, filePath string, limit int) ([]*models.ChangelogEntry, error) {
	return SearchChangelog(db, ChangelogFilters{FilePath: filePath, Limit: limit})
}

// ModifiedFilesForAgentTaskTx returns the distinct file paths with
// file-scoped changes (create/modify/delete) by one agent on one task.
// Compliance compares this set against the declared intent files.
func ModifiedFilesForAgentTaskTx(q Querier, taskID, agentID string) ([]string, error) {
	return queryStringColumn(q, `
		SELECT DISTINCT file_path FROM changelog
		WHERE task_id = ? AND agent_id = ? AND change_type IN ('create', 'modify', 'delete')
		ORDER BY file_path
	`, taskID, agentID)
}

// ChangelogAgentsForTask returns the distinct agents with file-scoped
// changelog rows on a task. Lifecycle rows (status changes, assignment) do
// not make an agent a participant for compliance purposes.
func ChangelogAgentsForTask(q Querier, taskID string) ([]string, error) {
	return queryStringColumn(q, `
		SELECT DISTINCT agent_id FROM changelog
		WHERE task_id = ? AND change_type IN ('create', 'modify', 'delete')
	`, taskID)
}

func queryChangelog(q Querier, query string, args ...any) ([]*models.ChangelogEntry, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changelog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.ChangelogEntry, 0)
	for rows.Next() {
		var (
			e      models.ChangelogEntry
			taskID sql.NullString
			diff   sql.NullString
			commit sql.NullString
		)
		if scanErr := rows.Scan(&e.ID, &taskID, &e.AgentID, &e.FilePath, &e.ChangeType, &e.Summary, &diff, &commit, &e.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		e.TaskID = scanNullString(taskID)
		e.DiffSnippet = scanNullString(diff)
		e.CommitHash = scanNullString(commit)
		out = append(out, &e)
	}
	return out, rows.Err()
}
