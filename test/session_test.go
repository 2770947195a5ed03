// Package test drives a complete multi-agent coordination session through
// the real scrum CLI against a temporary SQLite database.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// scrumTestBin is the path to the built scrum binary for integration tests.
var scrumTestBin string

// TestMain builds the scrum binary once before running all tests in this
// package.
func TestMain(m *testing.M) {
	repoRoot, err := filepath.Abs("..")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot resolve repo root: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(filepath.Join(repoRoot, "cmd", "scrum")); err != nil {
		// Running from the repo root instead of test/.
		if cwd, cerr := os.Getwd(); cerr == nil {
			repoRoot = cwd
		}
	}

	binPath := filepath.Join(repoRoot, "scrum-session-test")
	buildCmd := exec.Command("go", "build", "-o", binPath, "./cmd/scrum")
	buildCmd.Dir = repoRoot
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to build scrum binary: %v\n", err)
		os.Exit(1)
	}
	scrumTestBin = binPath

	code := m.Run()

	_ = os.Remove(binPath)
	os.Exit(code)
}

// harness holds test-scoped state shared across helper functions.
type harness struct {
	t      *testing.T
	dbPath string
	home   string
}

// newHarness creates a harness with an isolated temp DB and temp HOME so the
// config directory never touches the real one.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		t:      t,
		dbPath: filepath.Join(dir, "scrum-session.db"),
		home:   t.TempDir(),
	}
}

// run executes the scrum binary as the given agent, returning stdout.
// Commands exit non-zero on rejections; the caller inspects the JSON
// envelope instead.
func (h *harness) run(agent string, args ...string) string {
	h.t.Helper()
	fullArgs := append([]string{"--db-path", h.dbPath}, args...)
	if agent != "" {
		fullArgs = append([]string{"--agent", agent}, fullArgs...)
	}
	cmd := exec.Command(scrumTestBin, fullArgs...)
	cmd.Env = append(os.Environ(), "HOME="+h.home)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	_ = cmd.Run()
	return stdout.String()
}

// mustJSON parses a single JSON envelope from stdout.
func mustJSON(t *testing.T, out string) map[string]any {
	t.Helper()
	out = strings.TrimSpace(out)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), "failed to parse JSON: %s", out)
	return m
}

// requireOK asserts ok=true and returns the parsed envelope.
func requireOK(t *testing.T, out string) map[string]any {
	t.Helper()
	m := mustJSON(t, out)
	require.Equal(t, true, m["ok"], "expected ok=true, got: %s", out)
	return m
}

// requireRejected asserts ok=false with the given error kind.
func requireRejected(t *testing.T, out, kind string) map[string]any {
	t.Helper()
	m := mustJSON(t, out)
	require.Equal(t, false, m["ok"], "expected ok=false, got: %s", out)
	errBody, ok := m["error"].(map[string]any)
	require.True(t, ok, "error body should be present: %s", out)
	require.Equal(t, kind, errBody["kind"], "unexpected error kind: %s", out)
	return m
}

// getStr extracts a nested string field from the parsed JSON using dot-path.
func getStr(m map[string]any, keys ...string) string {
	var cur any = m
	for _, k := range keys {
		if mm, ok := cur.(map[string]any); ok {
			cur = mm[k]
		} else {
			return ""
		}
	}
	if s, ok := cur.(string); ok {
		return s
	}
	return ""
}

// TestCoordinationSession walks the full protocol through the CLI: task
// creation, intent, claim, conflict, changelog, evidence, release, and the
// completion gates.
func TestCoordinationSession(t *testing.T) {
	h := newHarness(t)

	var taskID string
	t.Run("create_task", func(t *testing.T) {
		out := h.run("alice", "task", "create", "Ship the rate limiter",
			"--priority", "high",
			"--desc", "token bucket on the API gateway",
			"--label", "gateway")
		m := requireOK(t, out)
		taskID = getStr(m, "data", "id")
		require.NotEmpty(t, taskID)
		require.Equal(t, "backlog", getStr(m, "data", "status"))
		require.Equal(t, "high", getStr(m, "data", "priority"))
	})

	t.Run("claim_without_intent_rejected", func(t *testing.T) {
		out := h.run("alice", "claim", "create", "--file", "internal/gateway/limiter.go")
		m := requireRejected(t, out, "NO_INTENT")
		errBody := m["error"].(map[string]any)
		steps, _ := errBody["nextSteps"].([]any)
		require.NotEmpty(t, steps, "rejection should carry next steps")
	})

	t.Run("post_intent_and_claim", func(t *testing.T) {
		out := h.run("alice", "intent", "post", taskID,
			"--file", "internal/gateway/limiter.go",
			"--file", "internal/gateway/limiter_test.go",
			"--boundaries", "do not touch internal/auth/",
			"--criteria", "requests above the bucket rate get 429")
		m := requireOK(t, out)
		require.Equal(t, "alice", getStr(m, "data", "agentId"))

		claimOut := h.run("alice", "claim", "create",
			"--file", "internal/gateway/limiter.go",
			"--file", "internal/gateway/limiter_test.go")
		claimM := requireOK(t, claimOut)
		require.Equal(t, "alice", getStr(claimM, "data", "agentId"))
	})

	t.Run("second_agent_conflicts", func(t *testing.T) {
		intentOut := h.run("bob", "intent", "post", taskID,
			"--file", "internal/gateway/limiter.go",
			"--criteria", "competing plan for the same file")
		requireOK(t, intentOut)

		out := h.run("bob", "claim", "create", "--file", "internal/gateway/limiter.go")
		requireRejected(t, out, "CLAIM_CONFLICT")

		// Overlap check names the holder without claiming.
		overlapOut := h.run("bob", "claim", "overlap", "--file", "internal/gateway/limiter.go")
		overlapM := requireOK(t, overlapOut)
		overlaps, ok := overlapM["data"].([]any)
		require.True(t, ok && len(overlaps) == 1, "expected one overlap: %s", overlapOut)
		require.Equal(t, "alice", overlaps[0].(map[string]any)["agentId"])
	})

	t.Run("log_changes", func(t *testing.T) {
		out := h.run("alice", "log", "add", "internal/gateway/limiter.go",
			"--task", taskID,
			"--type", "modify",
			"--summary", "token bucket with per-client keys")
		requireOK(t, out)

		testOut := h.run("alice", "log", "add", "internal/gateway/limiter_test.go",
			"--task", taskID,
			"--type", "create",
			"--summary", "burst and refill coverage")
		requireOK(t, testOut)

		searchOut := h.run("", "log", "search", "--file", "limiter", "--by", "alice")
		searchM := requireOK(t, searchOut)
		entries, ok := searchM["data"].([]any)
		require.True(t, ok, "search should return an array: %s", searchOut)
		require.Len(t, entries, 2)
	})

	t.Run("release_without_evidence_rejected", func(t *testing.T) {
		out := h.run("alice", "claim", "release")
		requireRejected(t, out, "NO_EVIDENCE")

		// The lease must still be held after the failed release.
		listOut := h.run("", "claim", "list")
		listM := requireOK(t, listOut)
		claims, ok := listM["data"].([]any)
		require.True(t, ok && len(claims) == 1, "alice's claim should survive: %s", listOut)
	})

	t.Run("attach_evidence_and_release", func(t *testing.T) {
		out := h.run("alice", "evidence", "attach", taskID,
			"--cmd", "go test ./internal/gateway/...",
			"--output", "ok\t0.38s")
		m := requireOK(t, out)
		require.NotEmpty(t, getStr(m, "data", "id"))

		releaseOut := h.run("alice", "claim", "release")
		releaseM := requireOK(t, releaseOut)
		released, ok := releaseM["data"].(map[string]any)["released"].(float64)
		require.True(t, ok, "release should report a count: %s", releaseOut)
		require.Equal(t, float64(2), released)
	})

	t.Run("complete_task_through_gates", func(t *testing.T) {
		progressOut := h.run("alice", "task", "update", taskID, "--status", "in_progress")
		progressM := requireOK(t, progressOut)
		require.Equal(t, "in_progress", getStr(progressM, "data", "task", "status"))

		// Bob declared intent but produced no evidence; every touching agent
		// must account for itself before the task can finish.
		blockedOut := h.run("alice", "task", "update", taskID, "--status", "done")
		requireRejected(t, blockedOut, "COMPLIANCE_BLOCKED")

		evOut := h.run("bob", "evidence", "attach", taskID,
			"--cmd", "go vet ./internal/gateway/...",
			"--output", "clean")
		requireOK(t, evOut)

		doneOut := h.run("alice", "task", "update", taskID, "--status", "done")
		doneM := requireOK(t, doneOut)
		require.Equal(t, "done", getStr(doneM, "data", "task", "status"))
	})

	t.Run("compliance_report", func(t *testing.T) {
		out := h.run("alice", "compliance", "check", taskID)
		m := requireOK(t, out)
		reports, ok := m["data"].([]any)
		require.True(t, ok && len(reports) == 1, "expected one report for alice: %s", out)
		report := reports[0].(map[string]any)
		require.Equal(t, "alice", report["agentId"])
		require.Equal(t, true, report["compliant"], "alice followed the whole protocol: %s", out)
		require.Equal(t, float64(100), report["score"])
	})
}

// TestDependencyAndWipGates exercises the transition gates over the CLI.
func TestDependencyAndWipGates(t *testing.T) {
	h := newHarness(t)

	blockerOut := h.run("carol", "task", "create", "Design the schema")
	blockerID := getStr(requireOK(t, blockerOut), "data", "id")

	dependentOut := h.run("carol", "task", "create", "Write the migrations")
	dependentID := getStr(requireOK(t, dependentOut), "data", "id")

	t.Run("dependency_blocks_start", func(t *testing.T) {
		depOut := h.run("carol", "task", "dep", "add", dependentID, blockerID)
		requireOK(t, depOut)

		out := h.run("carol", "task", "update", dependentID, "--status", "in_progress")
		requireRejected(t, out, "DEPENDENCY_BLOCKED")

		readyOut := h.run("", "task", "ready", dependentID)
		readyM := requireOK(t, readyOut)
		ready, _ := readyM["data"].(map[string]any)["ready"].(bool)
		require.False(t, ready, "task should not be ready while blocked: %s", readyOut)
	})

	t.Run("cycle_rejected", func(t *testing.T) {
		out := h.run("carol", "task", "dep", "add", blockerID, dependentID)
		requireRejected(t, out, "CYCLE")
	})

	t.Run("completing_blocker_unblocks", func(t *testing.T) {
		progressOut := h.run("carol", "task", "update", blockerID, "--status", "in_progress")
		requireOK(t, progressOut)
		doneOut := h.run("carol", "task", "update", blockerID, "--status", "done")
		requireOK(t, doneOut)

		out := h.run("carol", "task", "update", dependentID, "--status", "in_progress")
		m := requireOK(t, out)
		require.Equal(t, "in_progress", getStr(m, "data", "task", "status"))
	})

	t.Run("wip_limit_blocks_and_warns", func(t *testing.T) {
		setOut := h.run("", "wip", "set", "in_progress", "1")
		requireOK(t, setOut)

		// dependentID already occupies the single in_progress slot.
		extraOut := h.run("carol", "task", "create", "One task too many")
		extraID := getStr(requireOK(t, extraOut), "data", "id")

		out := h.run("carol", "task", "update", extraID, "--status", "in_progress")
		requireRejected(t, out, "WIP_EXCEEDED")

		warnOut := h.run("carol", "task", "update", extraID,
			"--status", "in_progress", "--no-enforce-wip")
		warnM := requireOK(t, warnOut)
		warnings, _ := warnM["data"].(map[string]any)["warnings"].([]any)
		require.NotEmpty(t, warnings, "bypassed gate should still warn: %s", warnOut)
	})
}

// TestAgentRegistryOverCLI covers registration, heartbeat, and listing.
func TestAgentRegistryOverCLI(t *testing.T) {
	h := newHarness(t)

	out := h.run("", "agent", "register", "dave", "--capability", "go", "--capability", "sql")
	m := requireOK(t, out)
	require.Equal(t, "dave", getStr(m, "data", "agentId"))

	again := h.run("", "agent", "register", "dave")
	againM := requireOK(t, again)
	caps, _ := againM["data"].(map[string]any)["capabilities"].([]any)
	require.Len(t, caps, 2, "heartbeat without capabilities should keep the old set")

	listOut := h.run("", "agent", "list")
	listM := requireOK(t, listOut)
	agents, ok := listM["data"].([]any)
	require.True(t, ok && len(agents) == 1, "expected one agent: %s", listOut)
}
