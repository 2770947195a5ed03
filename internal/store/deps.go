package store

import (
	"database/sql"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// AddDependencyTx adds a depends_on edge after checking the failure modes in
// order: self-dependency, duplicate, cycle. Cycle detection walks the loaded
// edge set from dependsOnTaskID; reaching taskID means the new edge would
// close a loop.
func AddDependencyTx(tx *sql.Tx, taskID, dependsOnTaskID string, maxDepth int, now int64) (*models.TaskDependency, error) {
	if taskID == dependsOnTaskID {
		return nil, &models.DependencyEdgeError{
			Code: models.CodeSelfDependency, TaskID: taskID, DependsOnTaskID: dependsOnTaskID,
		}
	}

	for _, id := range []string{taskID, dependsOnTaskID} {
		exists, err := TaskExistsTx(tx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &models.NotFoundError{Entity: "task", ID: id}
		}
	}

	var dup int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM task_dependencies WHERE task_id = ? AND depends_on_task_id = ?
	`, taskID, dependsOnTaskID).Scan(&dup)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate dependency: %w", err)
	}
	if dup > 0 {
		return nil, &models.DependencyEdgeError{
			Code: models.CodeDuplicate, TaskID: taskID, DependsOnTaskID: dependsOnTaskID,
		}
	}

	edges, err := loadDependencyEdges(tx)
	if err != nil {
		return nil, err
	}
	if reachable(edges, dependsOnTaskID, taskID, maxDepth) {
		return nil, &models.DependencyEdgeError{
			Code: models.CodeCycle, TaskID: taskID, DependsOnTaskID: dependsOnTaskID,
		}
	}

	id := NewID("dep")
	_, err = tx.Exec(`
		INSERT INTO task_dependencies (id, task_id, depends_on_task_id, created_at)
		VALUES (?, ?, ?, ?)
	`, id, taskID, dependsOnTaskID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert dependency: %w", err)
	}

	return &models.TaskDependency{
		ID: id, TaskID: taskID, DependsOnTaskID: dependsOnTaskID, CreatedAt: now,
	}, nil
}

// RemoveDependencyTx deletes a depends_on edge.
func RemoveDependencyTx(tx *sql.Tx, taskID, dependsOnTaskID string) error {
	res, err := tx.Exec(`
		DELETE FROM task_dependencies WHERE task_id = ? AND depends_on_task_id = ?
	`, taskID, dependsOnTaskID)
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check dependency rows affected: %w", err)
	}
	if n == 0 {
		return &models.NotFoundError{Entity: "dependency", ID: taskID + " -> " + dependsOnTaskID}
	}
	return nil
}

// GetDependencies returns the direct depends_on task IDs, oldest edge first.
func GetDependencies(db *sql.DB, taskID string) ([]string, error) {
	return queryStringColumn(db, `
		SELECT depends_on_task_id FROM task_dependencies
		WHERE task_id = ? ORDER BY created_at ASC
	`, taskID)
}

// GetDependents returns the direct task IDs that depend on taskID.
func GetDependents(db *sql.DB, taskID string) ([]string, error) {
	return queryStringColumn(db, `
		SELECT task_id FROM task_dependencies
		WHERE depends_on_task_id = ? ORDER BY created_at ASC
	`, taskID)
}

// Readiness is the result of a transitive readiness check.
type Readiness struct {
	Ready         bool     `json:"ready"`
	BlockingTasks []string `json:"blockingTasks,omitempty"`
}

// IsTaskReadyTx computes readiness inside a transaction: a task is ready iff
// every task transitively reachable via depends_on edges has status done.
// BlockingTasks lists every reachable task whose status is not done.
// Traversal is bounded at maxDepth levels.
func IsTaskReadyTx(tx *sql.Tx, taskID string, maxDepth int) (*Readiness, error) {
	edges, err := loadDependencyEdges(tx)
	if err != nil {
		return nil, err
	}

	reached := closure(edges, taskID, maxDepth)
	if len(reached) == 0 {
		return &Readiness{Ready: true}, nil
	}

	var blocking []string
	for _, dep := range reached {
		var status models.TaskStatus
		err := tx.QueryRow(`SELECT status FROM tasks WHERE id = ?`, dep).Scan(&status)
		if err == sql.ErrNoRows {
			// Dangling edge (dependency task cascaded away): not blocking.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dependency status: %w", err)
		}
		if status != models.TaskStatusDone {
			blocking = append(blocking, dep)
		}
	}

	return &Readiness{Ready: len(blocking) == 0, BlockingTasks: blocking}, nil
}

// IsTaskReady is the standalone variant of IsTaskReadyTx.
func IsTaskReady(db *sql.DB, taskID string, maxDepth int) (*Readiness, error) {
	var r *Readiness
	err := Transact(db, func(tx *sql.Tx) error {
		var txErr error
		r, txErr = IsTaskReadyTx(tx, taskID, maxDepth)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// loadDependencyEdges reads the whole edge set once. The dependency graph is
// small (one row per declared edge), so a single scan beats per-node queries
// during traversal.
func loadDependencyEdges(tx *sql.Tx) (map[string][]string, error) {
	rows, err := tx.Query(`SELECT task_id, depends_on_task_id FROM task_dependencies`)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependency edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	edges := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if scanErr := rows.Scan(&from, &to); scanErr != nil {
			return nil, scanErr
		}
		edges[from] = append(edges[from], to)
	}
	return edges, rows.Err()
}

// closure returns every node reachable from start via edges, in BFS order,
// bounded at maxDepth levels. start itself is excluded.
func closure(edges map[string][]string, start string, maxDepth int) []string {
	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, dep := range edges[node] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				out = append(out, dep)
				next = append(next, dep)
			}
		}
		frontier = next
	}
	return out
}

// reachable reports whether target is reachable from start, bounded at maxDepth.
func reachable(edges map[string][]string, start, target string, maxDepth int) bool {
	for _, node := range closure(edges, start, maxDepth) {
		if node == target {
			return true
		}
	}
	return false
}
