package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/app"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/output"
	"github.com/dotcommander/scrum/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := store.InitDBWithPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	settings := app.Settings{
		OutputClipBytes:           app.DefaultOutputClipBytes,
		AgentOfflineAfterMs:       app.DefaultAgentOfflineAfterMs,
		DefaultClaimTTLSeconds:    app.DefaultClaimTTLSeconds,
		ClaimExtendDefaultSeconds: app.DefaultClaimExtendDefaultSeconds,
		DepClosureMaxDepth:        app.DefaultDepClosureMaxDepth,
	}
	svc := actions.NewService(db, store.SystemClock{}, nil, settings, nil)

	ts := httptest.NewServer(New(svc, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) (int, output.Envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env output.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func dataMap(t *testing.T, env output.Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "expected object data, got %T", env.Data)
	return m
}

func TestTaskEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, ts, http.MethodPost, "/api/tasks", map[string]any{
		"title":    "serve traffic",
		"priority": "high",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.OK)
	task := dataMap(t, env)
	taskID := task["id"].(string)
	assert.Equal(t, "high", task["priority"])

	status, env = doJSON(t, ts, http.MethodGet, "/api/tasks/"+taskID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "serve traffic", dataMap(t, env)["title"])

	status, env = doJSON(t, ts, http.MethodPatch, "/api/tasks/"+taskID, map[string]any{
		"status": "in_progress",
	})
	require.Equal(t, http.StatusOK, status)
	result := dataMap(t, env)
	inner := result["task"].(map[string]any)
	assert.Equal(t, "in_progress", inner["status"])

	status, env = doJSON(t, ts, http.MethodGet, "/api/tasks/task-missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, models.CodeNotFound, env.Error.Kind)
}

func TestValidationReturns400(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, ts, http.MethodPost, "/api/tasks", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, models.CodeValidation, env.Error.Kind)
	assert.False(t, env.OK)
}

func TestMalformedJSONReturns400(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/api/tasks", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClaimProtocolOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	_, env := doJSON(t, ts, http.MethodPost, "/api/tasks", map[string]any{"title": "shared edit"})
	taskID := dataMap(t, env)["id"].(string)

	// Claiming without intent is a 409 with remediation steps.
	status, env := doJSON(t, ts, http.MethodPost, "/api/claims", map[string]any{
		"agentId": "agent-1",
		"files":   []string{"a.go"},
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, models.CodeNoIntent, env.Error.Kind)
	assert.NotEmpty(t, env.Error.NextSteps)

	status, _ = doJSON(t, ts, http.MethodPost, "/api/intents", map[string]any{
		"taskId":             taskID,
		"agentId":            "agent-1",
		"files":              []string{"a.go"},
		"acceptanceCriteria": "a.go compiles and is covered",
	})
	require.Equal(t, http.StatusOK, status)

	status, env = doJSON(t, ts, http.MethodPost, "/api/claims", map[string]any{
		"agentId": "agent-1",
		"files":   []string{"a.go"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "agent-1", dataMap(t, env)["agentId"])

	// A second agent hits the conflict.
	status, _ = doJSON(t, ts, http.MethodPost, "/api/intents", map[string]any{
		"taskId":             taskID,
		"agentId":            "agent-2",
		"files":              []string{"a.go"},
		"acceptanceCriteria": "same file, different plan",
	})
	require.Equal(t, http.StatusOK, status)
	status, env = doJSON(t, ts, http.MethodPost, "/api/claims", map[string]any{
		"agentId": "agent-2",
		"files":   []string{"a.go"},
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, models.CodeClaimConflict, env.Error.Kind)
}

func TestAgentRegisterAndHeartbeatEmptyBody(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, ts, http.MethodPost, "/api/agents/agent-1/register", map[string]any{
		"capabilities": []string{"go"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "idle", dataMap(t, env)["status"])

	// Heartbeat with no body at all.
	resp, err := ts.Client().Post(ts.URL+"/api/agents/agent-1/heartbeat", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWipEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, _ := doJSON(t, ts, http.MethodPost, "/api/wip", map[string]any{
		"status":   "in_progress",
		"maxTasks": 2,
	})
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, ts, http.MethodGet, "/api/wip", nil)
	require.Equal(t, http.StatusOK, status)
	list, ok := env.Data.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestComplianceEndpointRequiresTaskID(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, ts, http.MethodGet, "/api/compliance", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, models.CodeValidation, env.Error.Kind)
}

func TestMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/metrics/board",
		"/api/metrics/velocity",
		"/api/metrics/aging",
		"/api/metrics/dead-work",
	} {
		status, env := doJSON(t, ts, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.True(t, env.OK, path)
	}
}

func TestWebhookEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, ts, http.MethodPost, "/api/webhooks", map[string]any{
		"url":        "http://127.0.0.1:9090/sink",
		"eventTypes": []string{"task.created"},
	})
	require.Equal(t, http.StatusOK, status)
	hookID := dataMap(t, env)["id"].(string)

	status, env = doJSON(t, ts, http.MethodGet, "/api/webhooks", nil)
	require.Equal(t, http.StatusOK, status)
	hooks := env.Data.([]any)
	require.Len(t, hooks, 1)

	status, _ = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/webhooks/%s/deliveries", hookID), nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, ts, http.MethodDelete, "/api/webhooks/"+hookID, nil)
	require.Equal(t, http.StatusOK, status)
}
