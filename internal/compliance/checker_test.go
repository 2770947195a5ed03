package compliance

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.InitDBWithPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTask(t *testing.T, db *sql.DB, now int64) *models.Task {
	t.Helper()
	var task *models.Task
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		var err error
		task, err = store.CreateTaskTx(tx, store.TaskCreateParams{Title: "implement parser"}, now)
		return err
	}))
	return task
}

func postIntent(t *testing.T, db *sql.DB, taskID, agentID string, files []string, boundaries string, now int64) {
	t.Helper()
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		_, err := store.CreateIntentTx(tx, taskID, agentID, files, boundaries, "parser handles all inputs", now)
		return err
	}))
}

func attachEvidence(t *testing.T, db *sql.DB, taskID, agentID string, now int64) {
	t.Helper()
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		_, err := store.AttachEvidenceTx(tx, taskID, agentID, "go test ./...", "ok", now)
		return err
	}))
}

func logFileChange(t *testing.T, db *sql.DB, taskID, agentID, path string, now int64) {
	t.Helper()
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		_, err := store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID: taskID, AgentID: agentID, FilePath: path,
			ChangeType: models.ChangeModify, Summary: "edit",
		}, now)
		return err
	}))
}

func TestCheckTaskFullyCompliant(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)
	task := createTask(t, db, now)

	postIntent(t, db, task.ID, "agent-1", []string{"src/parser.go"}, "", now)
	attachEvidence(t, db, task.ID, "agent-1", now+1)
	logFileChange(t, db, task.ID, "agent-1", "src/parser.go", now+2)

	report, err := CheckTask(db, task.ID, "agent-1", now+3)
	require.NoError(t, err)

	assert.True(t, report.IntentPosted.Passed)
	assert.True(t, report.EvidenceAttached.Passed)
	assert.True(t, report.FilesMatch.Passed)
	assert.True(t, report.BoundariesRespected.Passed)
	assert.True(t, report.ClaimsReleased.Passed)
	assert.Equal(t, 100, report.Score)
	assert.True(t, report.Compliant)
	assert.True(t, report.CanComplete)
}

func TestCheckTaskUndeclaredFile(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)
	task := createTask(t, db, now)

	postIntent(t, db, task.ID, "agent-1", []string{"src/parser.go"}, "", now)
	attachEvidence(t, db, task.ID, "agent-1", now+1)
	logFileChange(t, db, task.ID, "agent-1", "src/parser.go", now+2)
	logFileChange(t, db, task.ID, "agent-1", "src/sneaky.go", now+3)

	report, err := CheckTask(db, task.ID, "agent-1", now+4)
	require.NoError(t, err)

	assert.False(t, report.FilesMatch.Passed)
	assert.Equal(t, []string{"src/sneaky.go"}, report.FilesMatch.UndeclaredFiles)
	assert.Equal(t, 70, report.Score)
	assert.True(t, report.Compliant)
	assert.False(t, report.CanComplete)
}

func TestCheckTaskBoundaryViolation(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)
	task := createTask(t, db, now)

	postIntent(t, db, task.ID, "agent-1",
		[]string{"src/parser.go", "internal/auth/token.go"},
		"do not touch internal/auth/", now)
	attachEvidence(t, db, task.ID, "agent-1", now+1)
	logFileChange(t, db, task.ID, "agent-1", "src/parser.go", now+2)
	logFileChange(t, db, task.ID, "agent-1", "internal/auth/token.go", now+3)

	report, err := CheckTask(db, task.ID, "agent-1", now+4)
	require.NoError(t, err)

	assert.True(t, report.FilesMatch.Passed)
	assert.False(t, report.BoundariesRespected.Passed)
	assert.Equal(t, []string{"internal/auth/token.go"}, report.BoundariesRespected.Violations)
	assert.Equal(t, 80, report.Score)
	assert.False(t, report.CanComplete)
}

func TestCheckTaskHeldClaimsBlockNothing(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)
	task := createTask(t, db, now)

	postIntent(t, db, task.ID, "agent-1", []string{"src/parser.go"}, "", now)
	attachEvidence(t, db, task.ID, "agent-1", now+1)
	logFileChange(t, db, task.ID, "agent-1", "src/parser.go", now+2)
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		_, err := store.CreateClaimTx(tx, "agent-1", []string{"src/parser.go"}, 900, now+2)
		return err
	}))

	report, err := CheckTask(db, task.ID, "agent-1", now+3)
	require.NoError(t, err)

	assert.False(t, report.ClaimsReleased.Passed)
	assert.Equal(t, 90, report.Score)
	assert.True(t, report.Compliant)
	// Held claims never block completion, only release.
	assert.True(t, report.CanComplete)
}

func TestCheckTaskNothingDone(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)
	task := createTask(t, db, now)

	report, err := CheckTask(db, task.ID, "agent-1", now)
	require.NoError(t, err)

	assert.False(t, report.IntentPosted.Passed)
	assert.False(t, report.EvidenceAttached.Passed)
	// No modifications and no declarations: filesMatch passes vacuously.
	assert.True(t, report.FilesMatch.Passed)
	assert.True(t, report.BoundariesRespected.Passed)
	assert.True(t, report.ClaimsReleased.Passed)
	assert.Equal(t, 60, report.Score)
	assert.False(t, report.Compliant)
	assert.False(t, report.CanComplete)
}

func TestTouchingAgents(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)
	task := createTask(t, db, now)

	postIntent(t, db, task.ID, "agent-b", []string{"a.go"}, "", now)
	attachEvidence(t, db, task.ID, "agent-c", now+1)
	logFileChange(t, db, task.ID, "agent-a", "a.go", now+2)

	agents, err := TouchingAgents(db, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-a", "agent-b", "agent-c"}, agents)
}
