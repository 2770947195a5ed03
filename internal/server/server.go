// Package server exposes the facade over localhost HTTP. All responses use
// the standard envelope; state-change events stream over SSE at /events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/output"
)

// maxBodyBytes bounds request bodies; evidence output dominates and is
// already clipped server-side, so 1 MiB is generous.
const maxBodyBytes = 1 << 20

// Server serves the coordination API.
type Server struct {
	svc    *actions.Service
	logger *slog.Logger
}

// New builds a server over the facade.
func New(svc *actions.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{svc: svc, logger: logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("GET /api/tasks/{id}/ready", s.handleTaskReady)

	mux.HandleFunc("GET /api/tasks/{id}/comments", s.handleListComments)
	mux.HandleFunc("POST /api/tasks/{id}/comments", s.handleAddComment)
	mux.HandleFunc("PATCH /api/comments/{id}", s.handleUpdateComment)
	mux.HandleFunc("DELETE /api/comments/{id}", s.handleDeleteComment)
	mux.HandleFunc("GET /api/tasks/{id}/blockers", s.handleListBlockers)
	mux.HandleFunc("GET /api/tasks/{id}/blockers/count", s.handleBlockerCount)
	mux.HandleFunc("POST /api/tasks/{id}/blockers", s.handleAddBlocker)
	mux.HandleFunc("POST /api/blockers/{id}/resolve", s.handleResolveBlocker)
	mux.HandleFunc("GET /api/tasks/{id}/dependencies", s.handleGetDependencies)
	mux.HandleFunc("POST /api/tasks/{id}/dependencies", s.handleAddDependency)
	mux.HandleFunc("DELETE /api/tasks/{id}/dependencies/{dep}", s.handleRemoveDependency)

	mux.HandleFunc("GET /api/wip", s.handleWipStatus)
	mux.HandleFunc("POST /api/wip", s.handleSetWipLimit)

	mux.HandleFunc("POST /api/intents", s.handlePostIntent)
	mux.HandleFunc("GET /api/tasks/{id}/intents", s.handleListIntents)

	mux.HandleFunc("POST /api/claims", s.handleCreateClaim)
	mux.HandleFunc("GET /api/claims", s.handleListClaims)
	mux.HandleFunc("POST /api/claims/release", s.handleReleaseClaims)
	mux.HandleFunc("POST /api/claims/extend", s.handleExtendClaims)
	mux.HandleFunc("POST /api/claims/overlap", s.handleOverlapCheck)

	mux.HandleFunc("POST /api/evidence", s.handleAttachEvidence)
	mux.HandleFunc("GET /api/tasks/{id}/evidence", s.handleListEvidence)

	mux.HandleFunc("POST /api/changelog", s.handleLogChange)
	mux.HandleFunc("GET /api/changelog", s.handleSearchChangelog)

	mux.HandleFunc("GET /api/compliance", s.handleCheckCompliance)

	mux.HandleFunc("POST /api/agents/{id}/register", s.handleRegisterAgent)
	mux.HandleFunc("POST /api/agents/{id}/heartbeat", s.handleRegisterAgent)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)

	mux.HandleFunc("GET /api/metrics/board", s.handleMetricsBoard)
	mux.HandleFunc("GET /api/metrics/velocity", s.handleMetricsVelocity)
	mux.HandleFunc("GET /api/metrics/aging", s.handleMetricsAging)
	mux.HandleFunc("GET /api/metrics/dead-work", s.handleMetricsDeadWork)

	mux.HandleFunc("POST /api/webhooks", s.handleRegisterWebhook)
	mux.HandleFunc("GET /api/webhooks", s.handleListWebhooks)
	mux.HandleFunc("DELETE /api/webhooks/{id}", s.handleDeleteWebhook)
	mux.HandleFunc("GET /api/webhooks/{id}/deliveries", s.handleListDeliveries)

	mux.HandleFunc("GET /events", s.handleEvents)

	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// decode reads a bounded JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Reason: "malformed JSON: " + err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, env output.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, output.Success(data))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), output.Error(err))
}

// statusFor maps stable error codes onto HTTP statuses. Contract rejections
// (gates, conflicts) are 409: the request was well-formed but the current
// state forbids it.
func statusFor(err error) int {
	var coord models.CoordinationError
	if !errors.As(err, &coord) {
		return http.StatusInternalServerError
	}
	switch coord.ErrorCode() {
	case models.CodeValidation:
		return http.StatusBadRequest
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeClaimConflict, models.CodeNoIntent, models.CodeNoEvidence,
		models.CodeDependencyBlocked, models.CodeWipExceeded,
		models.CodeComplianceFailed, models.CodeBoundaryViolation,
		models.CodeComplianceBlocked, models.CodeSelfDependency,
		models.CodeDuplicate, models.CodeCycle:
		return http.StatusConflict
	case models.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
