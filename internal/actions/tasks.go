package actions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/compliance"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// MaxTitleLength bounds task titles.
const MaxTitleLength = 500

// CreateTaskInput carries caller-supplied fields for a new task. AgentID
// attributes the changelog entry.
type CreateTaskInput struct {
	Title         string
	Description   string
	Priority      models.TaskPriority
	Status        models.TaskStatus
	AssignedAgent string
	DueDate       *int64
	Labels        []string
	StoryPoints   *int
	AgentID       string
}

// CreateTask validates, inserts, logs task_created, and emits task.created.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, &models.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(in.Title) > MaxTitleLength {
		return nil, &models.ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLength)}
	}
	if in.Status != "" && !in.Status.IsValid() {
		return nil, &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", in.Status)}
	}
	if in.Priority != "" && !in.Priority.IsValid() {
		return nil, &models.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", in.Priority)}
	}

	now := s.now()
	var task *models.Task
	err := s.transact(ctx, "createTask", func(tx *sql.Tx) error {
		var txErr error
		task, txErr = store.CreateTaskTx(tx, store.TaskCreateParams{
			Title:         strings.TrimSpace(in.Title),
			Description:   in.Description,
			Priority:      in.Priority,
			Status:        in.Status,
			AssignedAgent: in.AssignedAgent,
			DueDate:       in.DueDate,
			Labels:        in.Labels,
			StoryPoints:   in.StoryPoints,
		}, now)
		if txErr != nil {
			return txErr
		}
		_, txErr = store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID:     task.ID,
			AgentID:    orSystem(in.AgentID),
			FilePath:   models.TaskChangelogPath(task.ID),
			ChangeType: models.ChangeTaskCreated,
			Summary:    "created task: " + task.Title,
		}, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.EventTaskCreated, now, task)
	return task, nil
}

// GetTask returns one task by id.
func (s *Service) GetTask(_ context.Context, taskID string) (*models.Task, error) {
	return store.GetTask(s.DB, taskID)
}

// ListTasks returns tasks matching the filters.
func (s *Service) ListTasks(_ context.Context, f store.TaskFilters) ([]*models.Task, error) {
	return store.ListTasks(s.DB, f)
}

// GetBoard returns the kanban projection.
func (s *Service) GetBoard(_ context.Context, f store.BoardFilters) (map[models.TaskStatus][]*models.Task, error) {
	return store.GetBoard(s.DB, f)
}

// UpdateOptions control gate strictness on updateTask. With enforcement off
// a failed gate downgrades to a warning instead of rejecting.
type UpdateOptions struct {
	EnforceDependencies bool
	EnforceWipLimits    bool
}

// DefaultUpdateOptions enforces every gate.
func DefaultUpdateOptions() UpdateOptions {
	return UpdateOptions{EnforceDependencies: true, EnforceWipLimits: true}
}

// TaskUpdateResult pairs the updated task with any gate warnings.
type TaskUpdateResult struct {
	Task     *models.Task `json:"task"`
	Warnings []string     `json:"warnings,omitempty"`
}

// UpdateTask applies a patch with the transition gates run inside the same
// transaction that writes the new status:
//
//   - entering in_progress checks transitive dependency readiness
//   - entering any status with a WIP limit checks the live count
//   - entering done checks compliance for every agent that touched the task
//
// Each status, assignment, and priority change appends a changelog row.
func (s *Service) UpdateTask(ctx context.Context, taskID string, agentID string, patch store.TaskPatch, opts UpdateOptions) (*TaskUpdateResult, error) {
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, &models.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *patch.Status)}
	}
	if patch.Priority != nil && !patch.Priority.IsValid() {
		return nil, &models.ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", *patch.Priority)}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, &models.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	now := s.now()
	result := &TaskUpdateResult{}
	err := s.transact(ctx, "updateTask", func(tx *sql.Tx) error {
		current, err := store.GetTaskTx(tx, taskID)
		if err != nil {
			return err
		}

		statusChanging := patch.Status != nil && *patch.Status != current.Status
		if statusChanging {
			warnings, gateErr := s.runStatusGates(tx, current, *patch.Status, opts, now)
			if gateErr != nil {
				return gateErr
			}
			result.Warnings = append(result.Warnings, warnings...)
		}

		updated, err := store.ApplyTaskPatchTx(tx, taskID, patch, now)
		if err != nil {
			return err
		}
		result.Task = updated

		return s.logTaskMutations(tx, current, updated, orSystem(agentID), statusChanging, now)
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.EventTaskUpdated, now, result.Task)
	return result, nil
}

// runStatusGates enforces the dependency, WIP, and compliance gates for a
// transition from current.Status to next. Returned warnings correspond to
// gates that failed with enforcement off.
func (s *Service) runStatusGates(tx *sql.Tx, current *models.Task, next models.TaskStatus, opts UpdateOptions, now int64) ([]string, error) {
	var warnings []string

	if next == models.TaskStatusInProgress {
		readiness, err := store.IsTaskReadyTx(tx, current.ID, s.Settings.DepClosureMaxDepth)
		if err != nil {
			return nil, err
		}
		if !readiness.Ready {
			if opts.EnforceDependencies {
				return nil, &models.DependencyBlockedError{TaskID: current.ID, BlockingTasks: readiness.BlockingTasks}
			}
			warnings = append(warnings, fmt.Sprintf(
				"starting despite incomplete dependencies: %s", strings.Join(readiness.BlockingTasks, ", ")))
		}
	}

	limit, err := store.GetWipLimitTx(tx, next)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		count, err := store.CountTasksInStatusTx(tx, next)
		if err != nil {
			return nil, err
		}
		if count >= limit.MaxTasks {
			if opts.EnforceWipLimits {
				return nil, &models.WipExceededError{Status: next, Limit: limit.MaxTasks, Current: count}
			}
			warnings = append(warnings, fmt.Sprintf(
				"WIP limit for %s exceeded: %d/%d", next, count+1, limit.MaxTasks))
		}
	}

	if next == models.TaskStatusDone {
		agents, err := compliance.TouchingAgents(tx, current.ID)
		if err != nil {
			return nil, err
		}
		for _, agent := range agents {
			report, err := compliance.CheckTask(tx, current.ID, agent, now)
			if err != nil {
				return nil, err
			}
			if !report.CanComplete {
				return nil, &models.ComplianceError{
					Code:            models.CodeComplianceBlocked,
					TaskID:          current.ID,
					AgentID:         agent,
					UndeclaredFiles: report.FilesMatch.UndeclaredFiles,
					Violations:      report.BoundariesRespected.Violations,
				}
			}
		}
	}

	return warnings, nil
}

// logTaskMutations appends one changelog row per observable change.
func (s *Service) logTaskMutations(tx *sql.Tx, before, after *models.Task, agentID string, statusChanged bool, now int64) error {
	path := models.TaskChangelogPath(after.ID)
	log := func(changeType models.ChangeType, summary string) error {
		_, err := store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID: after.ID, AgentID: agentID, FilePath: path,
			ChangeType: changeType, Summary: summary,
		}, now)
		return err
	}

	if statusChanged {
		if err := log(models.ChangeTaskStatusChange,
			fmt.Sprintf("status: %s -> %s", before.Status, after.Status)); err != nil {
			return err
		}
		if after.Status == models.TaskStatusDone {
			if err := log(models.ChangeTaskCompleted, "completed task: "+after.Title); err != nil {
				return err
			}
		}
	}
	if before.AssignedAgent != after.AssignedAgent {
		summary := "assigned to " + after.AssignedAgent
		if after.AssignedAgent == "" {
			summary = "unassigned"
		}
		if err := log(models.ChangeTaskAssigned, summary); err != nil {
			return err
		}
	}
	if before.Priority != after.Priority {
		if err := log(models.ChangeTaskPriorityChange,
			fmt.Sprintf("priority: %s -> %s", before.Priority, after.Priority)); err != nil {
			return err
		}
	}
	return nil
}

// IsTaskReady reports transitive readiness without mutating anything.
func (s *Service) IsTaskReady(_ context.Context, taskID string) (*store.Readiness, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}
	return store.IsTaskReady(s.DB, taskID, s.Settings.DepClosureMaxDepth)
}
