package metrics

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

func createTaskAt(t *testing.T, db *sql.DB, p store.TaskCreateParams, now int64) *models.Task {
	t.Helper()
	var task *models.Task
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		var err error
		task, err = store.CreateTaskTx(tx, p, now)
		return err
	}))
	return task
}

func completeTask(t *testing.T, db *sql.DB, taskID string, startAt, doneAt int64) {
	t.Helper()
	inProgress := models.TaskStatusInProgress
	done := models.TaskStatusDone
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		if _, err := store.ApplyTaskPatchTx(tx, taskID, store.TaskPatch{Status: &inProgress}, startAt); err != nil {
			return err
		}
		_, err := store.ApplyTaskPatchTx(tx, taskID, store.TaskPatch{Status: &done}, doneAt)
		return err
	}))
}

func TestBoardMetrics(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)

	// Completed this week: cycle 1h, lead 2h.
	a := createTaskAt(t, db, store.TaskCreateParams{Title: "done recently"}, now-2*60*60*1000)
	completeTask(t, db, a.ID, now-60*60*1000, now)

	// Completed long ago: outside the throughput window but still in averages.
	old := createTaskAt(t, db, store.TaskCreateParams{Title: "ancient"}, now-30*dayMs)
	completeTask(t, db, old.ID, now-30*dayMs, now-29*dayMs)

	// Still in progress.
	b := createTaskAt(t, db, store.TaskCreateParams{Title: "wip"}, now-dayMs)
	inProgress := models.TaskStatusInProgress
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		_, err := store.ApplyTaskPatchTx(tx, b.ID, store.TaskPatch{Status: &inProgress}, now-dayMs)
		return err
	}))

	m, err := Board(db, now)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Throughput7d)
	require.NotNil(t, m.AvgCycleTimeMs)
	require.NotNil(t, m.AvgLeadTimeMs)
	assert.Equal(t, 1, m.WipByStatus[models.TaskStatusInProgress])
	assert.Equal(t, 2, m.WipByStatus[models.TaskStatusDone])
	require.Len(t, m.AgingWip, 1)
	assert.Equal(t, b.ID, m.AgingWip[0].TaskID)
	assert.Equal(t, dayMs, m.AgingWip[0].AgeMs)
}

func TestVelocityBuckets(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)

	points := 3
	recent := createTaskAt(t, db, store.TaskCreateParams{Title: "this week", StoryPoints: &points}, now-2*dayMs)
	completeTask(t, db, recent.ID, now-2*dayMs, now-dayMs)

	previous := createTaskAt(t, db, store.TaskCreateParams{Title: "last week"}, now-10*dayMs)
	completeTask(t, db, previous.ID, now-10*dayMs, now-9*dayMs)

	buckets, err := Velocity(db, now, 2)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, 1, buckets[0].TasksCompleted)
	assert.Equal(t, 3, buckets[0].StoryPoints)
	assert.Equal(t, 1, buckets[1].TasksCompleted)
	assert.Equal(t, 0, buckets[1].StoryPoints)
}

func TestAgingExcludesTerminalStatuses(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)

	stale := createTaskAt(t, db, store.TaskCreateParams{Title: "forgotten"}, now-10*dayMs)
	fresh := createTaskAt(t, db, store.TaskCreateParams{Title: "fresh"}, now)
	finished := createTaskAt(t, db, store.TaskCreateParams{Title: "finished"}, now-10*dayMs)
	completeTask(t, db, finished.ID, now-10*dayMs, now-9*dayMs)

	tasks, err := Aging(db, now, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, stale.ID, tasks[0].TaskID)
	assert.NotEqual(t, fresh.ID, tasks[0].TaskID)
}

func TestDeadWorkTracksChangelogActivity(t *testing.T) {
	db := setupDB(t)
	now := int64(1_700_000_000_000)

	abandoned := createTaskAt(t, db, store.TaskCreateParams{
		Title: "stalled", Status: models.TaskStatusInProgress,
	}, now-5*dayMs)
	active := createTaskAt(t, db, store.TaskCreateParams{
		Title: "alive", Status: models.TaskStatusInProgress,
	}, now-5*dayMs)

	// Recent changelog activity keeps a task off the dead-work list.
	require.NoError(t, store.Transact(db, func(tx *sql.Tx) error {
		_, err := store.AppendChangelogTx(tx, store.ChangelogParams{
			TaskID: active.ID, AgentID: "agent-1", FilePath: "a.go",
			ChangeType: models.ChangeModify, Summary: "still working",
		}, now-60*60*1000)
		return err
	}))

	tasks, err := DeadWork(db, now, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, abandoned.ID, tasks[0].TaskID)
}
