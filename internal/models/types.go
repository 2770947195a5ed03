package models

import "encoding/json"

// ID Strategy:
// - All entities use string IDs (distributed generation, e.g. "task_1712000000123_a3f9c2b81d04")
// - Changelog and evidence rows are append-only; ordering comes from created_at (ms)
//
// All timestamps are integer milliseconds from the Unix epoch, produced by the
// injected store.Clock. Pointer fields mean "unset".

// TaskStatus represents the current state of a task on the board.
type TaskStatus string

// Task status constants.
const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every valid status, board order first, cancelled last.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusBacklog,
		TaskStatusTodo,
		TaskStatusInProgress,
		TaskStatusReview,
		TaskStatusDone,
		TaskStatusCancelled,
	}
}

// IsValid returns true if s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusTodo, TaskStatusInProgress,
		TaskStatusReview, TaskStatusDone, TaskStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that end a task's life on the board.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// TaskPriority represents task urgency.
type TaskPriority string

// Task priority constants, highest first.
const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// IsValid returns true if p is a known priority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank returns a sortable weight: higher is more urgent.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Task is a unit of work on the kanban board.
type Task struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	Status        TaskStatus   `json:"status"`
	Priority      TaskPriority `json:"priority"`
	AssignedAgent string       `json:"assignedAgent,omitempty"`
	DueDate       *int64       `json:"dueDate,omitempty"`
	Labels        []string     `json:"labels,omitempty"`
	StoryPoints   *int         `json:"storyPoints,omitempty"`
	CreatedAt     int64        `json:"createdAt"`
	StartedAt     *int64       `json:"startedAt,omitempty"`
	CompletedAt   *int64       `json:"completedAt,omitempty"`
	UpdatedAt     *int64       `json:"updatedAt,omitempty"`
}

// Comment is a plain-text note on a task.
type Comment struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	AgentID   string `json:"agentId"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt *int64 `json:"updatedAt,omitempty"`
}

// Blocker records something preventing progress on a task. Resolution is
// one-way: ResolvedAt is set once and never cleared.
type Blocker struct {
	ID             string `json:"id"`
	TaskID         string `json:"taskId"`
	AgentID        string `json:"agentId"`
	Description    string `json:"description"`
	BlockingTaskID string `json:"blockingTaskId,omitempty"`
	ResolvedAt     *int64 `json:"resolvedAt,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
}

// IsResolved returns true once the blocker has been resolved.
func (b *Blocker) IsResolved() bool { return b.ResolvedAt != nil }

// TaskDependency is a depends_on edge between two tasks. The edge set is
// always acyclic (enforced on insert).
type TaskDependency struct {
	ID              string `json:"id"`
	TaskID          string `json:"taskId"`
	DependsOnTaskID string `json:"dependsOnTaskId"`
	CreatedAt       int64  `json:"createdAt"`
}

// Intent is an agent's immutable declaration of the files it plans to touch
// for a task, the boundaries it promises to respect, and acceptance criteria.
type Intent struct {
	ID                 string   `json:"id"`
	TaskID             string   `json:"taskId"`
	AgentID            string   `json:"agentId"`
	Files              []string `json:"files"`
	Boundaries         string   `json:"boundaries,omitempty"`
	AcceptanceCriteria string   `json:"acceptanceCriteria"`
	CreatedAt          int64    `json:"createdAt"`
}

// Claim aggregates an agent's active per-file leases as surfaced to callers.
// ExpiresAt is the max across rows, CreatedAt the min.
type Claim struct {
	AgentID   string   `json:"agentId"`
	Files     []string `json:"files"`
	ExpiresAt int64    `json:"expiresAt"`
	CreatedAt int64    `json:"createdAt"`
}

// Evidence is an append-only record of a command an agent ran and its
// (clipped) output, attached to a task.
type Evidence struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	AgentID   string `json:"agentId"`
	Command   string `json:"command"`
	Output    string `json:"output"`
	CreatedAt int64  `json:"createdAt"`
}

// ChangeType is the closed vocabulary for changelog entries.
type ChangeType string

// File-scoped change types.
const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// Task-lifecycle change types. These use the synthetic path "task:<taskId>".
const (
	ChangeTaskCreated        ChangeType = "task_created"
	ChangeTaskStatusChange   ChangeType = "task_status_change"
	ChangeTaskAssigned       ChangeType = "task_assigned"
	ChangeTaskPriorityChange ChangeType = "task_priority_change"
	ChangeTaskCompleted      ChangeType = "task_completed"
	ChangeBlockerAdded       ChangeType = "blocker_added"
	ChangeBlockerResolved    ChangeType = "blocker_resolved"
	ChangeDependencyAdded    ChangeType = "dependency_added"
	ChangeDependencyRemoved  ChangeType = "dependency_removed"
	ChangeCommentAdded       ChangeType = "comment_added"
)

// IsValid returns true if c is part of the changelog vocabulary.
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeCreate, ChangeModify, ChangeDelete,
		ChangeTaskCreated, ChangeTaskStatusChange, ChangeTaskAssigned,
		ChangeTaskPriorityChange, ChangeTaskCompleted,
		ChangeBlockerAdded, ChangeBlockerResolved,
		ChangeDependencyAdded, ChangeDependencyRemoved, ChangeCommentAdded:
		return true
	}
	return false
}

// IsFileChange returns true for the file-scoped subset used by compliance.
func (c ChangeType) IsFileChange() bool {
	return c == ChangeCreate || c == ChangeModify || c == ChangeDelete
}

// ChangelogEntry is one append-only audit row. TaskID is nullified if the
// task is ever removed; the row itself is never deleted.
type ChangelogEntry struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId,omitempty"`
	AgentID     string     `json:"agentId"`
	FilePath    string     `json:"filePath"`
	ChangeType  ChangeType `json:"changeType"`
	Summary     string     `json:"summary"`
	DiffSnippet string     `json:"diffSnippet,omitempty"`
	CommitHash  string     `json:"commitHash,omitempty"`
	CreatedAt   int64      `json:"createdAt"`
}

// TaskChangelogPath returns the synthetic file path used for task-lifecycle
// changelog entries.
func TaskChangelogPath(taskID string) string { return "task:" + taskID }

// AgentStatus is the derived liveness of a registered agent.
type AgentStatus string

// Agent status constants. Offline is derived from the heartbeat window,
// active/idle from whether the agent has any in_progress task.
const (
	AgentActive  AgentStatus = "active"
	AgentIdle    AgentStatus = "idle"
	AgentOffline AgentStatus = "offline"
)

// Agent is a registry row. Status is never stored; it is derived at read time.
type Agent struct {
	AgentID       string          `json:"agentId"`
	Capabilities  []string        `json:"capabilities,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	LastHeartbeat int64           `json:"lastHeartbeat"`
	RegisteredAt  int64           `json:"registeredAt"`
	Status        AgentStatus     `json:"status"`
}

// WipLimit bounds the number of tasks in a non-cancelled status.
type WipLimit struct {
	Status    TaskStatus `json:"status"`
	MaxTasks  int        `json:"maxTasks"`
	UpdatedAt int64      `json:"updatedAt"`
}

// TaskTemplate carries defaults for instantiating recurring task shapes.
type TaskTemplate struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	TitlePrefix string       `json:"titlePrefix,omitempty"`
	Description string       `json:"description,omitempty"`
	Priority    TaskPriority `json:"priority"`
	Labels      []string     `json:"labels,omitempty"`
	StoryPoints *int         `json:"storyPoints,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
}

// Webhook is a registered HTTP sink for bus events.
type Webhook struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	EventTypes []string `json:"eventTypes,omitempty"`
	Active     bool     `json:"active"`
	CreatedAt  int64    `json:"createdAt"`
}

// WebhookDelivery records one delivery attempt outcome.
type WebhookDelivery struct {
	ID         string `json:"id"`
	WebhookID  string `json:"webhookId"`
	EventType  string `json:"eventType"`
	Payload    string `json:"payload"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}
