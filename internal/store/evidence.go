package store

import (
	"database/sql"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// ClipOutput truncates s to at most clipBytes bytes, appending a marker when
// anything was dropped. Clipping is byte-oriented; a multi-byte rune at the
// boundary may be split, which is acceptable for log-style output.
func ClipOutput(s string, clipBytes int) string {
	if clipBytes <= 0 || len(s) <= clipBytes {
		return s
	}
	return s[:clipBytes] + "\n[output clipped]"
}

// AttachEvidenceTx appends an evidence row. Output must already be clipped
// by the caller (the facade owns the configured clip threshold).
func AttachEvidenceTx(tx *sql.Tx, taskID, agentID, command, output string, now int64) (*models.Evidence, error) {
	exists, err := TaskExistsTx(tx, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &models.NotFoundError{Entity: "task", ID: taskID}
	}

	id := NewID("evidence")
	_, err = tx.Exec(`
		INSERT INTO evidence (id, task_id, agent_id, command, output, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, taskID, agentID, command, output, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert evidence: %w", err)
	}

	return &models.Evidence{
		ID: id, TaskID: taskID, AgentID: agentID,
		Command: command, Output: output, CreatedAt: now,
	}, nil
}

// ListEvidence returns a task's evidence newest-first.
func ListEvidence(db *sql.DB, taskID string) ([]*models.Evidence, error) {
	return queryEvidence(db, `
		SELECT id, task_id, agent_id, command, output, created_at
		FROM evidence WHERE task_id = ? ORDER BY created_at DESC
	`, taskID)
}

// ListAllEvidence returns the most recent evidence across all tasks.
func ListAllEvidence(db *sql.DB, limit int) ([]*models.Evidence, error) {
	if limit <= 0 {
		limit = 100
	}
	return queryEvidence(db, `
		SELECT id, task_id, agent_id, command, output, created_at
		FROM evidence ORDER BY created_at DESC LIMIT ?
	`, limit)
}

// EvidenceTaskIDs is the result of a per-agent evidence existence check.
type EvidenceTaskIDs struct {
	HasEvidence bool     `json:"hasEvidence"`
	TaskIDs     []string `json:"taskIds,omitempty"`
}

// HasEvidenceForTask returns the distinct task ids with evidence by agentID.
func HasEvidenceForTask(q Querier, agentID string) (*EvidenceTaskIDs, error) {
	taskIDs, err := queryStringColumn(q, `
		SELECT DISTINCT task_id FROM evidence WHERE agent_id = ? ORDER BY task_id
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence tasks: %w", err)
	}
	return &EvidenceTaskIDs{HasEvidence: len(taskIDs) > 0, TaskIDs: taskIDs}, nil
}

// CountEvidenceForAgentTaskTx counts evidence rows by one agent on one task.
func CountEvidenceForAgentTaskTx(q Querier, taskID, agentID string) (int, error) {
	var n int
	err := q.QueryRow(`
		SELECT COUNT(*) FROM evidence WHERE task_id = ? AND agent_id = ?
	`, taskID, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return n, nil
}

// EvidenceAgentsForTask returns the distinct agents with evidence on a task.
func EvidenceAgentsForTask(q Querier, taskID string) ([]string, error) {
	return queryStringColumn(q, `SELECT DISTINCT agent_id FROM evidence WHERE task_id = ?`, taskID)
}

func queryEvidence(q Querier, query string, args ...any) ([]*models.Evidence, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.Evidence, 0)
	for rows.Next() {
		var e models.Evidence
		if scanErr := rows.Scan(&e.ID, &e.TaskID, &e.AgentID, &e.Command, &e.Output, &e.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
