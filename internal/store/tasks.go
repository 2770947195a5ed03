package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dotcommander/scrum/internal/models"
)

// TaskCreateParams carries the caller-supplied fields for a new task.
type TaskCreateParams struct {
	Title         string
	Description   string
	Priority      models.TaskPriority
	Status        models.TaskStatus
	AssignedAgent string
	DueDate       *int64
	Labels        []string
	StoryPoints   *int
}

// CreateTaskTx inserts and returns a task inside an existing transaction.
// Zero-value status defaults to backlog, priority to medium.
func CreateTaskTx(tx *sql.Tx, p TaskCreateParams, now int64) (*models.Task, error) {
	if p.Status == "" {
		p.Status = models.TaskStatusBacklog
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}

	taskID := NewID("task")
	labels, err := encodeStringList(p.Labels)
	if err != nil {
		return nil, err
	}

	var assigned any
	if p.AssignedAgent != "" {
		assigned = p.AssignedAgent
	}
	var due any
	if p.DueDate != nil {
		due = *p.DueDate
	}
	var points any
	if p.StoryPoints != nil {
		points = *p.StoryPoints
	}

	// startedAt/completedAt stamp on create too, in case a task is born
	// directly into in_progress or done (import paths do this).
	var startedAt, completedAt any
	if p.Status == models.TaskStatusInProgress {
		startedAt = now
	}
	if p.Status == models.TaskStatusDone {
		completedAt = now
	}

	_, err = tx.Exec(`
		INSERT INTO tasks (id, title, description, status, priority, assigned_agent, due_date, labels, story_points, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, taskID, p.Title, p.Description, p.Status, p.Priority, assigned, due, labels, points, now, startedAt, completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return getTaskByQuerier(tx, taskID)
}

// GetTask retrieves a task by ID.
func GetTask(db *sql.DB, taskID string) (*models.Task, error) {
	return getTaskByQuerier(db, taskID)
}

// GetTaskTx retrieves a task by ID in an existing transaction.
func GetTaskTx(tx *sql.Tx, taskID string) (*models.Task, error) {
	return getTaskByQuerier(tx, taskID)
}

func getTaskByQuerier(q Querier, taskID string) (*models.Task, error) {
	row := q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	task, err := scanTaskRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "task", ID: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task: %w", err)
	}
	return task, nil
}

// TaskExistsTx reports whether a task row exists.
func TaskExistsTx(tx *sql.Tx, taskID string) (bool, error) {
	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = ?`, taskID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return n > 0, nil
}

// TaskFilters narrows ListTasks results. Zero values mean "no filter".
type TaskFilters struct {
	Status        models.TaskStatus
	AssignedAgent string
	Priority      models.TaskPriority
	Label         string
	Limit         int
}

// priorityRankSQL orders priorities critical > high > medium > low in SQL.
const priorityRankSQL = `CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`

// ListTasks returns tasks matching the filters, priority desc then createdAt asc.
func ListTasks(db *sql.DB, f TaskFilters) ([]*models.Task, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.AssignedAgent != "" {
		conds = append(conds, "assigned_agent = ?")
		args = append(args, f.AssignedAgent)
	}
	if f.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, f.Priority)
	}
	if f.Label != "" {
		// Labels are a JSON array column; match the quoted element.
		conds = append(conds, "labels LIKE ?")
		args = append(args, `%"`+f.Label+`"%`)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY ` + priorityRankSQL + ` DESC, created_at ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	return queryTasks(db, query, args...)
}

func queryTasks(q Querier, query string, args ...any) ([]*models.Task, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, scanErr := scanTaskRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", scanErr)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// TaskPatch carries optional field updates. Nil means "unchanged".
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	AssignedAgent *string // empty string unassigns
	DueDate       *int64
	Labels        *[]string
	StoryPoints   *int
}

// ApplyTaskPatchTx writes the patch and returns the updated task. StartedAt
// is stamped the first time status becomes in_progress; CompletedAt the
// first time it becomes done. Gating (dependencies, WIP, compliance) is the
// facade's job and must happen in the same transaction before this call.
func ApplyTaskPatchTx(tx *sql.Tx, taskID string, patch TaskPatch, now int64) (*models.Task, error) {
	current, err := GetTaskTx(tx, taskID)
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{now}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.AssignedAgent != nil {
		if *patch.AssignedAgent == "" {
			sets = append(sets, "assigned_agent = NULL")
		} else {
			sets = append(sets, "assigned_agent = ?")
			args = append(args, *patch.AssignedAgent)
		}
	}
	if patch.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *patch.DueDate)
	}
	if patch.Labels != nil {
		labels, encErr := encodeStringList(*patch.Labels)
		if encErr != nil {
			return nil, encErr
		}
		sets = append(sets, "labels = ?")
		args = append(args, labels)
	}
	if patch.StoryPoints != nil {
		sets = append(sets, "story_points = ?")
		args = append(args, *patch.StoryPoints)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)

		if *patch.Status == models.TaskStatusInProgress && current.StartedAt == nil {
			sets = append(sets, "started_at = ?")
			args = append(args, now)
		}
		if *patch.Status == models.TaskStatusDone && current.CompletedAt == nil {
			sets = append(sets, "completed_at = ?")
			args = append(args, now)
		}
	}

	args = append(args, taskID)
	_, err = tx.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return GetTaskTx(tx, taskID)
}

// CountTasksInStatusTx returns the number of tasks currently in status.
// Used for WIP limit checks inside the updating transaction.
func CountTasksInStatusTx(tx *sql.Tx, status models.TaskStatus) (int, error) {
	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM tasks WHERE status = ?`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks in status: %w", err)
	}
	return n, nil
}

// CountTasksByStatus returns counts for every status with at least one task.
func CountTasksByStatus(db *sql.DB) (map[models.TaskStatus]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status models.TaskStatus
		var n int
		if scanErr := rows.Scan(&status, &n); scanErr != nil {
			return nil, scanErr
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// BoardFilters narrows the board projection.
type BoardFilters struct {
	AssignedAgent string
	Labels        []string
}

// GetBoard returns the five non-cancelled status buckets as ordered lists
// (priority desc, then createdAt asc).
func GetBoard(db *sql.DB, f BoardFilters) (map[models.TaskStatus][]*models.Task, error) {
	var (
		conds = []string{"status != ?"}
		args  = []any{models.TaskStatusCancelled}
	)
	if f.AssignedAgent != "" {
		conds = append(conds, "assigned_agent = ?")
		args = append(args, f.AssignedAgent)
	}
	for _, label := range f.Labels {
		conds = append(conds, "labels LIKE ?")
		args = append(args, `%"`+label+`"%`)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ` + priorityRankSQL + ` DESC, created_at ASC`

	tasks, err := queryTasks(db, query, args...)
	if err != nil {
		return nil, err
	}

	board := map[models.TaskStatus][]*models.Task{
		models.TaskStatusBacklog:    {},
		models.TaskStatusTodo:       {},
		models.TaskStatusInProgress: {},
		models.TaskStatusReview:     {},
		models.TaskStatusDone:       {},
	}
	for _, task := range tasks {
		board[task.Status] = append(board[task.Status], task)
	}
	return board, nil
}

// AgentHasInProgressTask reports whether the agent is assigned any
// in_progress task. Drives the active/idle liveness derivation.
func AgentHasInProgressTask(db *sql.DB, agentID string) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM tasks WHERE assigned_agent = ? AND status = ?
	`, agentID, models.TaskStatusInProgress).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check in-progress tasks: %w", err)
	}
	return n > 0, nil
}
