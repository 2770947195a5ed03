package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/models"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDBWithPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func inTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx) error) {
	t.Helper()
	require.NoError(t, Transact(db, fn))
}

func newTask(t *testing.T, db *sql.DB, p TaskCreateParams, now int64) *models.Task {
	t.Helper()
	var task *models.Task
	inTx(t, db, func(tx *sql.Tx) error {
		var err error
		task, err = CreateTaskTx(tx, p, now)
		return err
	})
	return task
}
