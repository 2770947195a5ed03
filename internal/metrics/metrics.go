// Package metrics computes read-only flow analytics over the task board and
// changelog: throughput, cycle/lead time, WIP, aging, velocity, dead work.
package metrics

import (
	"database/sql"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

const (
	dayMs  = int64(24 * 60 * 60 * 1000)
	weekMs = 7 * dayMs
)

// DefaultAgingThresholdMs flags tasks untouched for three days.
const DefaultAgingThresholdMs = 3 * dayMs

// DefaultDeadWorkThresholdMs flags in_progress tasks with no changelog
// activity for two days.
const DefaultDeadWorkThresholdMs = 2 * dayMs

// BoardMetrics is the flow summary for the whole board.
type BoardMetrics struct {
	Throughput7d   int                       `json:"throughput7d"`
	AvgCycleTimeMs *int64                    `json:"avgCycleTimeMs,omitempty"`
	AvgLeadTimeMs  *int64                    `json:"avgLeadTimeMs,omitempty"`
	WipByStatus    map[models.TaskStatus]int `json:"wipByStatus"`
	AgingWip       []TaskAge                 `json:"agingWip,omitempty"`
}

// TaskAge pairs a task with how long it has been sitting.
type TaskAge struct {
	TaskID        string            `json:"taskId"`
	Title         string            `json:"title"`
	Status        models.TaskStatus `json:"status"`
	AssignedAgent string            `json:"assignedAgent,omitempty"`
	AgeMs         int64             `json:"ageMs"`
}

// Board computes throughput over the trailing week, average cycle time
// (started to completed) and lead time (created to completed) over all done
// tasks, live WIP counts, and the age of every in_progress task.
func Board(db *sql.DB, now int64) (*BoardMetrics, error) {
	m := &BoardMetrics{}

	weekAgo := now - weekMs
	err := db.QueryRow(`
		SELECT COUNT(*) FROM tasks WHERE status = ? AND completed_at >= ?
	`, models.TaskStatusDone, weekAgo).Scan(&m.Throughput7d)
	if err != nil {
		return nil, fmt.Errorf("failed to compute throughput: %w", err)
	}

	var cycle, lead sql.NullFloat64
	err = db.QueryRow(`
		SELECT AVG(completed_at - started_at), AVG(completed_at - created_at)
		FROM tasks
		WHERE status = ? AND completed_at IS NOT NULL AND started_at IS NOT NULL
	`, models.TaskStatusDone).Scan(&cycle, &lead)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cycle/lead time: %w", err)
	}
	if cycle.Valid {
		v := int64(cycle.Float64)
		m.AvgCycleTimeMs = &v
	}
	if lead.Valid {
		v := int64(lead.Float64)
		m.AvgLeadTimeMs = &v
	}

	counts, err := store.CountTasksByStatus(db)
	if err != nil {
		return nil, err
	}
	m.WipByStatus = counts

	m.AgingWip, err = taskAges(db, `
		SELECT id, title, status, assigned_agent, started_at FROM tasks
		WHERE status = ? AND started_at IS NOT NULL
		ORDER BY started_at ASC
	`, now, models.TaskStatusInProgress)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// VelocityBucket is one trailing week of completed work, newest first.
type VelocityBucket struct {
	WeekStart      int64 `json:"weekStart"`
	TasksCompleted int   `json:"tasksCompleted"`
	StoryPoints    int   `json:"storyPoints"`
}

// Velocity buckets completed tasks into trailing 7-day windows ending at now.
func Velocity(db *sql.DB, now int64, weeks int) ([]VelocityBucket, error) {
	if weeks <= 0 {
		weeks = 4
	}

	buckets := make([]VelocityBucket, 0, weeks)
	for i := 0; i < weeks; i++ {
		end := now - int64(i)*weekMs
		start := end - weekMs

		var count int
		var points sql.NullInt64
		err := db.QueryRow(`
			SELECT COUNT(*), COALESCE(SUM(story_points), 0) FROM tasks
			WHERE status = ? AND completed_at > ? AND completed_at <= ?
		`, models.TaskStatusDone, start, end).Scan(&count, &points)
		if err != nil {
			return nil, fmt.Errorf("failed to compute velocity: %w", err)
		}
		buckets = append(buckets, VelocityBucket{
			WeekStart:      start,
			TasksCompleted: count,
			StoryPoints:    int(points.Int64),
		})
	}
	return buckets, nil
}

// Aging returns non-terminal tasks untouched for longer than thresholdMs,
// oldest first. Age is measured from the last update, or creation when the
// task was never updated.
func Aging(db *sql.DB, now, thresholdMs int64) ([]TaskAge, error) {
	if thresholdMs <= 0 {
		thresholdMs = DefaultAgingThresholdMs
	}
	cutoff := now - thresholdMs
	return taskAges(db, `
		SELECT id, title, status, assigned_agent, COALESCE(updated_at, created_at) FROM tasks
		WHERE status NOT IN (?, ?) AND COALESCE(updated_at, created_at) < ?
		ORDER BY COALESCE(updated_at, created_at) ASC
	`, now, models.TaskStatusDone, models.TaskStatusCancelled, cutoff)
}

// DeadWork returns in_progress tasks with no changelog activity for longer
// than thresholdMs: work that was started and then silently abandoned. Age is
// measured from the last changelog row, or from startedAt when none exists.
func DeadWork(db *sql.DB, now, thresholdMs int64) ([]TaskAge, error) {
	if thresholdMs <= 0 {
		thresholdMs = DefaultDeadWorkThresholdMs
	}
	cutoff := now - thresholdMs
	return taskAges(db, `
		SELECT t.id, t.title, t.status, t.assigned_agent,
		       COALESCE(MAX(c.created_at), t.started_at, t.created_at) AS last_activity
		FROM tasks t
		LEFT JOIN changelog c ON c.task_id = t.id
		WHERE t.status = ?
		GROUP BY t.id
		HAVING last_activity < ?
		ORDER BY last_activity ASC
	`, now, models.TaskStatusInProgress, cutoff)
}

// taskAges scans rows of (id, title, status, assigned_agent, since) into
// TaskAge records with AgeMs = now - since.
func taskAges(db *sql.DB, query string, now int64, args ...any) ([]TaskAge, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task ages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]TaskAge, 0)
	for rows.Next() {
		var (
			t        TaskAge
			assigned sql.NullString
			since    int64
		)
		if scanErr := rows.Scan(&t.TaskID, &t.Title, &t.Status, &assigned, &since); scanErr != nil {
			return nil, scanErr
		}
		if assigned.Valid {
			t.AssignedAgent = assigned.String
		}
		t.AgeMs = now - since
		out = append(out, t)
	}
	return out, rows.Err()
}
