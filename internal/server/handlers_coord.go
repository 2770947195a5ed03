package server

import (
	"encoding/json"
	"net/http"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/metrics"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

type intentRequest struct {
	TaskID             string   `json:"taskId"`
	AgentID            string   `json:"agentId"`
	Files              []string `json:"files"`
	Boundaries         string   `json:"boundaries"`
	AcceptanceCriteria string   `json:"acceptanceCriteria"`
}

func (s *Server) handlePostIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	intent, err := s.svc.PostIntent(r.Context(), actions.PostIntentInput{
		TaskID:             req.TaskID,
		AgentID:            req.AgentID,
		Files:              req.Files,
		Boundaries:         req.Boundaries,
		AcceptanceCriteria: req.AcceptanceCriteria,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, intent)
}

func (s *Server) handleListIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := s.svc.ListIntents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, intents)
}

type claimRequest struct {
	AgentID    string   `json:"agentId"`
	Files      []string `json:"files"`
	TTLSeconds int      `json:"ttlSeconds"`
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	claim, err := s.svc.CreateClaim(r.Context(), req.AgentID, req.Files, req.TTLSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, claim)
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	if agentID := r.URL.Query().Get("agentId"); agentID != "" {
		claim, err := s.svc.GetAgentClaims(r.Context(), agentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, claim)
		return
	}
	claims, err := s.svc.ListActiveClaims(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, claims)
}

func (s *Server) handleReleaseClaims(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string   `json:"agentId"`
		Files   []string `json:"files"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	released, err := s.svc.ReleaseClaims(r.Context(), req.AgentID, req.Files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]int64{"released": released})
}

func (s *Server) handleExtendClaims(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID           string   `json:"agentId"`
		AdditionalSeconds int      `json:"additionalSeconds"`
		Files             []string `json:"files"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ext, err := s.svc.ExtendClaims(r.Context(), req.AgentID, req.AdditionalSeconds, req.Files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, ext)
}

func (s *Server) handleOverlapCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Files []string `json:"files"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	overlaps, err := s.svc.CheckOverlap(r.Context(), req.Files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, overlaps)
}

type evidenceRequest struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId"`
	Command string `json:"command"`
	Output  string `json:"output"`
}

func (s *Server) handleAttachEvidence(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	evidence, err := s.svc.AttachEvidence(r.Context(), req.TaskID, req.AgentID, req.Command, req.Output)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, evidence)
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	evidence, err := s.svc.ListEvidence(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, evidence)
}

type logChangeRequest struct {
	TaskID      string            `json:"taskId"`
	AgentID     string            `json:"agentId"`
	FilePath    string            `json:"filePath"`
	ChangeType  models.ChangeType `json:"changeType"`
	Summary     string            `json:"summary"`
	DiffSnippet string            `json:"diffSnippet"`
	CommitHash  string            `json:"commitHash"`
}

func (s *Server) handleLogChange(w http.ResponseWriter, r *http.Request) {
	var req logChangeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.svc.LogChange(r.Context(), store.ChangelogParams{
		TaskID:      req.TaskID,
		AgentID:     req.AgentID,
		FilePath:    req.FilePath,
		ChangeType:  req.ChangeType,
		Summary:     req.Summary,
		DiffSnippet: req.DiffSnippet,
		CommitHash:  req.CommitHash,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, entry)
}

func (s *Server) handleSearchChangelog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.svc.SearchChangelog(r.Context(), store.ChangelogFilters{
		FilePath:   q.Get("filePath"),
		AgentID:    q.Get("agentId"),
		TaskID:     q.Get("taskId"),
		ChangeType: models.ChangeType(q.Get("changeType")),
		Since:      int64Query(q.Get("since")),
		Until:      int64Query(q.Get("until")),
		Query:      q.Get("query"),
		Limit:      intQuery(q.Get("limit")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, entries)
}

func (s *Server) handleCheckCompliance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	taskID := q.Get("taskId")
	if taskID == "" {
		writeError(w, &models.ValidationError{Field: "taskId", Reason: "must not be empty"})
		return
	}
	reports, err := s.svc.CheckCompliance(r.Context(), taskID, q.Get("agentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, reports)
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Capabilities []string        `json:"capabilities"`
		Metadata     json.RawMessage `json:"metadata"`
	}
	// Heartbeats may come with an empty body.
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	agent, err := s.svc.RegisterOrHeartbeat(r.Context(), r.PathValue("id"), req.Capabilities, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.svc.ListAgents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, agents)
}

func (s *Server) handleMetricsBoard(w http.ResponseWriter, r *http.Request) {
	m, err := metrics.Board(s.svc.DB, s.svc.Clock.NowMs())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, m)
}

func (s *Server) handleMetricsVelocity(w http.ResponseWriter, r *http.Request) {
	buckets, err := metrics.Velocity(s.svc.DB, s.svc.Clock.NowMs(), intQuery(r.URL.Query().Get("weeks")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, buckets)
}

func (s *Server) handleMetricsAging(w http.ResponseWriter, r *http.Request) {
	tasks, err := metrics.Aging(s.svc.DB, s.svc.Clock.NowMs(), int64Query(r.URL.Query().Get("thresholdMs")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, tasks)
}

func (s *Server) handleMetricsDeadWork(w http.ResponseWriter, r *http.Request) {
	tasks, err := metrics.DeadWork(s.svc.DB, s.svc.Clock.NowMs(), int64Query(r.URL.Query().Get("thresholdMs")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, tasks)
}

func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL        string   `json:"url"`
		EventTypes []string `json:"eventTypes"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	hook, err := s.svc.RegisterWebhook(r.Context(), req.URL, req.EventTypes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, hook)
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.svc.ListWebhooks(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, hooks)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteWebhook(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]bool{"deleted": true})
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := s.svc.ListDeliveries(r.Context(), r.PathValue("id"), intQuery(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, deliveries)
}
