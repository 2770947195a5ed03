package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// AddBlockerTx records a blocker on a task. When blockingTaskID is set, that
// task must exist.
func AddBlockerTx(tx *sql.Tx, taskID, agentID, description, blockingTaskID string, now int64) (*models.Blocker, error) {
	exists, err := TaskExistsTx(tx, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &models.NotFoundError{Entity: "task", ID: taskID}
	}

	var blocking any
	if blockingTaskID != "" {
		blockingExists, err := TaskExistsTx(tx, blockingTaskID)
		if err != nil {
			return nil, err
		}
		if !blockingExists {
			return nil, &models.NotFoundError{Entity: "task", ID: blockingTaskID}
		}
		blocking = blockingTaskID
	}

	id := NewID("blocker")
	_, err = tx.Exec(`
		INSERT INTO blockers (id, task_id, agent_id, description, blocking_task_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, taskID, agentID, description, blocking, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert blocker: %w", err)
	}

	return getBlockerByQuerier(tx, id)
}

// ResolveBlockerTx marks a blocker resolved. Resolving an already-resolved
// blocker is a no-op that returns the current record.
func ResolveBlockerTx(tx *sql.Tx, blockerID string, now int64) (*models.Blocker, bool, error) {
	blocker, err := getBlockerByQuerier(tx, blockerID)
	if err != nil {
		return nil, false, err
	}
	if blocker.IsResolved() {
		return blocker, false, nil
	}

	if _, err := tx.Exec(`UPDATE blockers SET resolved_at = ? WHERE id = ?`, now, blockerID); err != nil {
		return nil, false, fmt.Errorf("failed to resolve blocker: %w", err)
	}

	blocker, err = getBlockerByQuerier(tx, blockerID)
	if err != nil {
		return nil, false, err
	}
	return blocker, true, nil
}

// ListBlockers returns a task's blockers newest-first. When unresolvedOnly is
// set, resolved blockers are filtered out.
func ListBlockers(db *sql.DB, taskID string, unresolvedOnly bool) ([]*models.Blocker, error) {
	query := `
		SELECT id, task_id, agent_id, description, blocking_task_id, resolved_at, created_at
		FROM blockers WHERE task_id = ?`
	if unresolvedOnly {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blockers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	blockers := make([]*models.Blocker, 0)
	for rows.Next() {
		b, scanErr := scanBlockerRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		blockers = append(blockers, b)
	}
	return blockers, rows.Err()
}

// CountUnresolvedBlockers is exposed for UI chips.
func CountUnresolvedBlockers(db *sql.DB, taskID string) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM blockers WHERE task_id = ? AND resolved_at IS NULL
	`, taskID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved blockers: %w", err)
	}
	return n, nil
}

func getBlockerByQuerier(q Querier, id string) (*models.Blocker, error) {
	row := q.QueryRow(`
		SELECT id, task_id, agent_id, description, blocking_task_id, resolved_at, created_at
		FROM blockers WHERE id = ?
	`, id)
	b, err := scanBlockerRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "blocker", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blocker: %w", err)
	}
	return b, nil
}

func scanBlockerRow(row rowScanner) (*models.Blocker, error) {
	var b models.Blocker
	var blocking sql.NullString
	var resolvedAt sql.NullInt64
	if err := row.Scan(&b.ID, &b.TaskID, &b.AgentID, &b.Description, &blocking, &resolvedAt, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.BlockingTaskID = scanNullString(blocking)
	b.ResolvedAt = scanNullInt64(resolvedAt)
	return &b, nil
}
