package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// SetWipLimitTx upserts the WIP limit for a status. maxTasks <= 0 removes
// the limit.
func SetWipLimitTx(tx *sql.Tx, status models.TaskStatus, maxTasks int, now int64) error {
	if maxTasks <= 0 {
		if _, err := tx.Exec(`DELETE FROM wip_limits WHERE status = ?`, status); err != nil {
			return fmt.Errorf("failed to remove wip limit: %w", err)
		}
		return nil
	}

	_, err := tx.Exec(`
		INSERT INTO wip_limits (status, max_tasks, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(status) DO UPDATE SET max_tasks = excluded.max_tasks, updated_at = excluded.updated_at
	`, status, maxTasks, now)
	if err != nil {
		return fmt.Errorf("failed to set wip limit: %w", err)
	}
	return nil
}

// GetWipLimit returns the limit for a status, or nil when none is set.
func GetWipLimit(db *sql.DB, status models.TaskStatus) (*models.WipLimit, error) {
	return getWipLimitByQuerier(db, status)
}

// GetWipLimitTx is the in-transaction variant used by the update gate.
func GetWipLimitTx(tx *sql.Tx, status models.TaskStatus) (*models.WipLimit, error) {
	return getWipLimitByQuerier(tx, status)
}

func getWipLimitByQuerier(q Querier, status models.TaskStatus) (*models.WipLimit, error) {
	var w models.WipLimit
	err := q.QueryRow(`
		SELECT status, max_tasks, updated_at FROM wip_limits WHERE status = ?
	`, status).Scan(&w.Status, &w.MaxTasks, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wip limit: %w", err)
	}
	return &w, nil
}

// ListWipLimits returns all configured limits.
func ListWipLimits(db *sql.DB) ([]*models.WipLimit, error) {
	rows, err := db.Query(`SELECT status, max_tasks, updated_at FROM wip_limits ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query wip limits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	limits := make([]*models.WipLimit, 0)
	for rows.Next() {
		var w models.WipLimit
		if scanErr := rows.Scan(&w.Status, &w.MaxTasks, &w.UpdatedAt); scanErr != nil {
			return nil, scanErr
		}
		limits = append(limits, &w)
	}
	return limits, rows.Err()
}

// WipStatus pairs a configured limit with the live task count.
type WipStatus struct {
	Status   models.TaskStatus `json:"status"`
	MaxTasks int               `json:"maxTasks"`
	Current  int               `json:"current"`
	Exceeded bool              `json:"exceeded"`
}

// GetWipStatus reports current count vs limit for every configured status.
func GetWipStatus(db *sql.DB) ([]*WipStatus, error) {
	limits, err := ListWipLimits(db)
	if err != nil {
		return nil, err
	}
	counts, err := CountTasksByStatus(db)
	if err != nil {
		return nil, err
	}

	out := make([]*WipStatus, 0, len(limits))
	for _, l := range limits {
		current := counts[l.Status]
		out = append(out, &WipStatus{
			Status:   l.Status,
			MaxTasks: l.MaxTasks,
			Current:  current,
			Exceeded: current > l.MaxTasks,
		})
	}
	return out, nil
}
