package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/models"
)

func appendEntry(t *testing.T, db *sql.DB, p ChangelogParams, now int64) *models.ChangelogEntry {
	t.Helper()
	var entry *models.ChangelogEntry
	inTx(t, db, func(tx *sql.Tx) error {
		var err error
		entry, err = AppendChangelogTx(tx, p, now)
		return err
	})
	return entry
}

func TestAppendChangelogRejectsMissingTask(t *testing.T) {
	db := testDB(t)

	err := Transact(db, func(tx *sql.Tx) error {
		_, err := AppendChangelogTx(tx, ChangelogParams{
			TaskID: "task-ghost", AgentID: "agent-1", FilePath: "a.go",
			ChangeType: models.ChangeModify, Summary: "edit",
		}, 1)
		return err
	})
	var nfe *models.NotFoundError
	require.ErrorAs(t, err, &nfe)
}

func TestSearchChangelogFilters(t *testing.T) {
	db := testDB(t)
	now := int64(1_700_000_000_000)
	task := newTask(t, db, TaskCreateParams{Title: "audited"}, now)

	appendEntry(t, db, ChangelogParams{
		TaskID: task.ID, AgentID: "agent-1", FilePath: "src/parser.go",
		ChangeType: models.ChangeCreate, Summary: "new parser",
	}, now)
	appendEntry(t, db, ChangelogParams{
		AgentID: "agent-2", FilePath: "src/lexer.go",
		ChangeType: models.ChangeModify, Summary: "tokenizer tweak",
		DiffSnippet: "+case '\\t':",
	}, now+10)
	appendEntry(t, db, ChangelogParams{
		AgentID: "agent-1", FilePath: "docs/readme.md",
		ChangeType: models.ChangeModify, Summary: "document flags",
	}, now+20)

	// Newest first by default.
	all, err := SearchChangelog(db, ChangelogFilters{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "docs/readme.md", all[0].FilePath)

	// Path substring.
	entries, err := SearchChangelog(db, ChangelogFilters{FilePath: "src/"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Agent filter.
	entries, err = SearchChangelog(db, ChangelogFilters{AgentID: "agent-2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "src/lexer.go", entries[0].FilePath)

	// Free text hits the diff snippet too.
	entries, err = SearchChangelog(db, ChangelogFilters{Query: "case"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "src/lexer.go", entries[0].FilePath)

	// Inclusive time window.
	entries, err = SearchChangelog(db, ChangelogFilters{Since: now + 10, Until: now + 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Limit caps newest-first.
	entries, err = SearchChangelog(db, ChangelogFilters{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "docs/readme.md", entries[0].FilePath)
}

func TestModifiedFilesForAgentTask(t *testing.T) {
	db := testDB(t)
	now := int64(1_700_000_000_000)
	task := newTask(t, db, TaskCreateParams{Title: "scoped"}, now)

	appendEntry(t, db, ChangelogParams{
		TaskID: task.ID, AgentID: "agent-1", FilePath: "a.go",
		ChangeType: models.ChangeModify, Summary: "edit",
	}, now)
	appendEntry(t, db, ChangelogParams{
		TaskID: task.ID, AgentID: "agent-1", FilePath: "a.go",
		ChangeType: models.ChangeModify, Summary: "edit again",
	}, now+1)
	// Lifecycle rows never count as file modifications.
	appendEntry(t, db, ChangelogParams{
		TaskID: task.ID, AgentID: "agent-1", FilePath: models.TaskChangelogPath(task.ID),
		ChangeType: models.ChangeTaskStatusChange, Summary: "status: backlog -> todo",
	}, now+2)

	files, err := ModifiedFilesForAgentTaskTx(db, task.ID, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, files)
}
