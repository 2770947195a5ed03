package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

type createTaskRequest struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Priority      models.TaskPriority `json:"priority"`
	Status        models.TaskStatus   `json:"status"`
	AssignedAgent string              `json:"assignedAgent"`
	DueDate       *int64              `json:"dueDate"`
	Labels        []string            `json:"labels"`
	StoryPoints   *int                `json:"storyPoints"`
	AgentID       string              `json:"agentId"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.svc.CreateTask(r.Context(), actions.CreateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		Status:        req.Status,
		AssignedAgent: req.AssignedAgent,
		DueDate:       req.DueDate,
		Labels:        req.Labels,
		StoryPoints:   req.StoryPoints,
		AgentID:       req.AgentID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := s.svc.ListTasks(r.Context(), store.TaskFilters{
		Status:        models.TaskStatus(q.Get("status")),
		AssignedAgent: q.Get("assignedAgent"),
		Priority:      models.TaskPriority(q.Get("priority")),
		Label:         q.Get("label"),
		Limit:         intQuery(q.Get("limit")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, tasks)
}

type updateTaskRequest struct {
	Title               *string              `json:"title"`
	Description         *string              `json:"description"`
	Status              *models.TaskStatus   `json:"status"`
	Priority            *models.TaskPriority `json:"priority"`
	AssignedAgent       *string              `json:"assignedAgent"`
	DueDate             *int64               `json:"dueDate"`
	Labels              *[]string            `json:"labels"`
	StoryPoints         *int                 `json:"storyPoints"`
	AgentID             string               `json:"agentId"`
	EnforceDependencies *bool                `json:"enforceDependencies"`
	EnforceWipLimits    *bool                `json:"enforceWipLimits"`
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	opts := actions.DefaultUpdateOptions()
	if req.EnforceDependencies != nil {
		opts.EnforceDependencies = *req.EnforceDependencies
	}
	if req.EnforceWipLimits != nil {
		opts.EnforceWipLimits = *req.EnforceWipLimits
	}

	result, err := s.svc.UpdateTask(r.Context(), r.PathValue("id"), req.AgentID, store.TaskPatch{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Priority:      req.Priority,
		AssignedAgent: req.AssignedAgent,
		DueDate:       req.DueDate,
		Labels:        req.Labels,
		StoryPoints:   req.StoryPoints,
	}, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, result)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var labels []string
	if raw := q.Get("labels"); raw != "" {
		labels = strings.Split(raw, ",")
	}
	board, err := s.svc.GetBoard(r.Context(), store.BoardFilters{
		AssignedAgent: q.Get("assignedAgent"),
		Labels:        labels,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, board)
}

func (s *Server) handleTaskReady(w http.ResponseWriter, r *http.Request) {
	readiness, err := s.svc.IsTaskReady(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, readiness)
}

type commentRequest struct {
	AgentID string `json:"agentId"`
	Content string `json:"content"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	comment, err := s.svc.AddComment(r.Context(), r.PathValue("id"), req.AgentID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, comment)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, comments)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	comment, err := s.svc.UpdateComment(r.Context(), r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, comment)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteComment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]bool{"deleted": true})
}

type blockerRequest struct {
	AgentID        string `json:"agentId"`
	Description    string `json:"description"`
	BlockingTaskID string `json:"blockingTaskId"`
}

func (s *Server) handleAddBlocker(w http.ResponseWriter, r *http.Request) {
	var req blockerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	blocker, err := s.svc.AddBlocker(r.Context(), r.PathValue("id"), req.AgentID, req.Description, req.BlockingTaskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, blocker)
}

func (s *Server) handleResolveBlocker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agentId"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	blocker, err := s.svc.ResolveBlocker(r.Context(), r.PathValue("id"), req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, blocker)
}

func (s *Server) handleListBlockers(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
	blockers, err := s.svc.ListBlockers(r.Context(), r.PathValue("id"), unresolvedOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, blockers)
}

func (s *Server) handleBlockerCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.CountUnresolvedBlockers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]int{"unresolved": count})
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DependsOnTaskID string `json:"dependsOnTaskId"`
		AgentID         string `json:"agentId"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dep, err := s.svc.AddDependency(r.Context(), r.PathValue("id"), req.DependsOnTaskID, req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, dep)
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	err := s.svc.RemoveDependency(r.Context(), r.PathValue("id"), r.PathValue("dep"), r.URL.Query().Get("agentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]bool{"removed": true})
}

func (s *Server) handleGetDependencies(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	deps, err := s.svc.GetDependencies(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	dependents, err := s.svc.GetDependents(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string][]string{"dependsOn": deps, "dependedOnBy": dependents})
}

func (s *Server) handleSetWipLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   models.TaskStatus `json:"status"`
		MaxTasks int               `json:"maxTasks"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.SetWipLimit(r.Context(), req.Status, req.MaxTasks); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]bool{"ok": true})
}

func (s *Server) handleWipStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.GetWipStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, status)
}

// intQuery parses a query parameter as int; malformed or absent yields 0.
func intQuery(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// int64Query parses a query parameter as int64; malformed or absent yields 0.
func int64Query(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
