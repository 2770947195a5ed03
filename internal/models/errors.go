package models

import (
	"fmt"
	"strings"
)

// CoordinationError is implemented by enriched errors that carry a stable
// code, structured context, and mechanical remediation steps. Both the store
// and server packages use this interface to avoid an import cycle.
type CoordinationError interface {
	error
	ErrorCode() string
	Context() map[string]string
	NextSteps() []string
}

// Stable error codes surfaced in response envelopes.
const (
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeClaimConflict     = "CLAIM_CONFLICT"
	CodeNoIntent          = "NO_INTENT"
	CodeNoEvidence        = "NO_EVIDENCE"
	CodeDependencyBlocked = "DEPENDENCY_BLOCKED"
	CodeWipExceeded       = "WIP_EXCEEDED"
	CodeComplianceFailed  = "COMPLIANCE_FAILED"
	CodeBoundaryViolation = "BOUNDARY_VIOLATION"
	CodeComplianceBlocked = "COMPLIANCE_BLOCKED"
	CodeSelfDependency    = "SELF_DEPENDENCY"
	CodeDuplicate         = "DUPLICATE"
	CodeCycle             = "CYCLE"
	CodeDeadlineExceeded  = "DEADLINE_EXCEEDED"
	CodeInternal          = "INTERNAL"
)

// ValidationError reports malformed input with field-level detail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
func (e *ValidationError) ErrorCode() string { return CodeValidation }
func (e *ValidationError) Context() map[string]string {
	return map[string]string{"field": e.Field, "reason": e.Reason}
}
func (e *ValidationError) NextSteps() []string { return nil }

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}
func (e *NotFoundError) ErrorCode() string { return CodeNotFound }
func (e *NotFoundError) Context() map[string]string {
	return map[string]string{"entity": e.Entity, "id": e.ID}
}
func (e *NotFoundError) NextSteps() []string { return nil }

// ClaimConflictError is returned when requested files are actively leased by
// other agents. No rows are written when this is returned.
type ClaimConflictError struct {
	AgentID       string
	Files         []string
	ConflictsWith []string
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("files claimed by other agents: %s", strings.Join(e.ConflictsWith, ", "))
}
func (e *ClaimConflictError) ErrorCode() string { return CodeClaimConflict }
func (e *ClaimConflictError) Context() map[string]string {
	return map[string]string{
		"agent_id":       e.AgentID,
		"files":          strings.Join(e.Files, ","),
		"conflicts_with": strings.Join(e.ConflictsWith, ","),
	}
}
func (e *ClaimConflictError) NextSteps() []string {
	return []string{
		"wait for the conflicting claims to expire or be released",
		"check active claims with the claims list operation",
		"claim a non-overlapping file set",
	}
}

// NoIntentError is returned when an agent claims files it never declared.
type NoIntentError struct {
	AgentID      string
	MissingFiles []string
}

func (e *NoIntentError) Error() string {
	return fmt.Sprintf("no intent declared for files: %s", strings.Join(e.MissingFiles, ", "))
}
func (e *NoIntentError) ErrorCode() string { return CodeNoIntent }
func (e *NoIntentError) Context() map[string]string {
	return map[string]string{
		"agent_id":      e.AgentID,
		"missing_files": strings.Join(e.MissingFiles, ","),
	}
}
func (e *NoIntentError) NextSteps() []string {
	return []string{
		"post an intent covering the missing files with acceptance criteria",
		"retry the claim after the intent is recorded",
	}
}

// NoEvidenceError is returned on claim release when the agent has no
// evidence rows at all.
type NoEvidenceError struct {
	AgentID string
}

func (e *NoEvidenceError) Error() string {
	return fmt.Sprintf("agent %s has no evidence attached", e.AgentID)
}
func (e *NoEvidenceError) ErrorCode() string { return CodeNoEvidence }
func (e *NoEvidenceError) Context() map[string]string {
	return map[string]string{"agent_id": e.AgentID}
}
func (e *NoEvidenceError) NextSteps() []string {
	return []string{
		"attach evidence (command + output) to the task you worked on",
		"retry the release after evidence is recorded",
	}
}

// DependencyBlockedError is returned when a task cannot start because
// transitively reachable dependencies are not done.
type DependencyBlockedError struct {
	TaskID        string
	BlockingTasks []string
}

func (e *DependencyBlockedError) Error() string {
	return fmt.Sprintf("task %s blocked by incomplete dependencies: %s", e.TaskID, strings.Join(e.BlockingTasks, ", "))
}
func (e *DependencyBlockedError) ErrorCode() string { return CodeDependencyBlocked }
func (e *DependencyBlockedError) Context() map[string]string {
	return map[string]string{
		"task_id":        e.TaskID,
		"blocking_tasks": strings.Join(e.BlockingTasks, ","),
	}
}
func (e *DependencyBlockedError) NextSteps() []string {
	return []string{
		"complete the blocking tasks first",
		"or pass enforceDependencies=false to start with a warning",
	}
}

// WipExceededError is returned when a status transition would exceed the
// configured WIP limit for the target status.
type WipExceededError struct {
	Status  TaskStatus
	Limit   int
	Current int
}

func (e *WipExceededError) Error() string {
	return fmt.Sprintf("WIP limit for %s exceeded: %d/%d", e.Status, e.Current, e.Limit)
}
func (e *WipExceededError) ErrorCode() string { return CodeWipExceeded }
func (e *WipExceededError) Context() map[string]string {
	return map[string]string{
		"status":  string(e.Status),
		"limit":   fmt.Sprintf("%d", e.Limit),
		"current": fmt.Sprintf("%d", e.Current),
	}
}
func (e *WipExceededError) NextSteps() []string {
	return []string{
		"move a task out of " + string(e.Status) + " first",
		"or raise the WIP limit for that status",
	}
}

// ComplianceError is returned when a compliance check gates an operation:
// undeclared file modifications, boundary violations, or an incomplete
// report blocking a transition to done.
type ComplianceError struct {
	Code            string // COMPLIANCE_FAILED, BOUNDARY_VIOLATION, COMPLIANCE_BLOCKED
	TaskID          string
	AgentID         string
	UndeclaredFiles []string
	Violations      []string
}

func (e *ComplianceError) Error() string {
	switch e.Code {
	case CodeBoundaryViolation:
		return fmt.Sprintf("agent %s violated declared boundaries: %s", e.AgentID, strings.Join(e.Violations, ", "))
	case CodeComplianceBlocked:
		return fmt.Sprintf("task %s cannot complete: agent %s fails compliance", e.TaskID, e.AgentID)
	default:
		return fmt.Sprintf("agent %s modified undeclared files: %s", e.AgentID, strings.Join(e.UndeclaredFiles, ", "))
	}
}
func (e *ComplianceError) ErrorCode() string { return e.Code }
func (e *ComplianceError) Context() map[string]string {
	ctx := map[string]string{"task_id": e.TaskID, "agent_id": e.AgentID}
	if len(e.UndeclaredFiles) > 0 {
		ctx["undeclared_files"] = strings.Join(e.UndeclaredFiles, ",")
	}
	if len(e.Violations) > 0 {
		ctx["violations"] = strings.Join(e.Violations, ",")
	}
	return ctx
}
func (e *ComplianceError) NextSteps() []string {
	steps := []string{"run the compliance check for the task to see the full report"}
	if len(e.UndeclaredFiles) > 0 {
		steps = append(steps, "post a new intent covering the undeclared files, or revert those changes")
	}
	if len(e.Violations) > 0 {
		steps = append(steps, "revert changes inside declared boundaries")
	}
	steps = append(steps, "ensure intent and evidence exist for every agent that touched the task")
	return steps
}

// DependencyEdgeError covers SELF_DEPENDENCY, DUPLICATE, and CYCLE failures
// when adding a depends_on edge.
type DependencyEdgeError struct {
	Code            string
	TaskID          string
	DependsOnTaskID string
}

func (e *DependencyEdgeError) Error() string {
	switch e.Code {
	case CodeSelfDependency:
		return fmt.Sprintf("task %s cannot depend on itself", e.TaskID)
	case CodeDuplicate:
		return fmt.Sprintf("dependency %s -> %s already exists", e.TaskID, e.DependsOnTaskID)
	default:
		return fmt.Sprintf("dependency %s -> %s would create a cycle", e.TaskID, e.DependsOnTaskID)
	}
}
func (e *DependencyEdgeError) ErrorCode() string { return e.Code }
func (e *DependencyEdgeError) Context() map[string]string {
	return map[string]string{
		"task_id":            e.TaskID,
		"depends_on_task_id": e.DependsOnTaskID,
	}
}
func (e *DependencyEdgeError) NextSteps() []string { return nil }

// DeadlineExceededError is returned when a caller-supplied deadline expired
// before the write transaction committed. No side effects occurred.
type DeadlineExceededError struct {
	Operation string
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("deadline exceeded before %s committed", e.Operation)
}
func (e *DeadlineExceededError) ErrorCode() string { return CodeDeadlineExceeded }
func (e *DeadlineExceededError) Context() map[string]string {
	return map[string]string{"operation": e.Operation}
}
func (e *DeadlineExceededError) NextSteps() []string { return nil }
