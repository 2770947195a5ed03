package store

import (
	"database/sql"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// MinAcceptanceCriteriaLength guards against placeholder criteria like "ok".
const MinAcceptanceCriteriaLength = 5

// CreateIntentTx appends an immutable intent row for (taskID, agentID).
func CreateIntentTx(tx *sql.Tx, taskID, agentID string, files []string, boundaries, acceptanceCriteria string, now int64) (*models.Intent, error) {
	exists, err := TaskExistsTx(tx, taskID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &models.NotFoundError{Entity: "task", ID: taskID}
	}

	filesJSON, err := encodeStringList(files)
	if err != nil {
		return nil, err
	}

	var boundariesVal any
	if boundaries != "" {
		boundariesVal = boundaries
	}

	id := NewID("intent")
	_, err = tx.Exec(`
		INSERT INTO intents (id, task_id, agent_id, files, boundaries, acceptance_criteria, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, taskID, agentID, filesJSON, boundariesVal, acceptanceCriteria, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert intent: %w", err)
	}

	return &models.Intent{
		ID:                 id,
		TaskID:             taskID,
		AgentID:            agentID,
		Files:              files,
		Boundaries:         boundaries,
		AcceptanceCriteria: acceptanceCriteria,
		CreatedAt:          now,
	}, nil
}

// ListIntents returns a task's intents newest-first.
func ListIntents(db *sql.DB, taskID string) ([]*models.Intent, error) {
	return queryIntents(db, `
		SELECT id, task_id, agent_id, files, boundaries, acceptance_criteria, created_at
		FROM intents WHERE task_id = ? ORDER BY created_at DESC
	`, taskID)
}

// ListIntentsForAgentTask returns intents for one (taskID, agentID) pair,
// newest-first. Compliance reads declared files and boundaries from these.
func ListIntentsForAgentTask(q Querier, taskID, agentID string) ([]*models.Intent, error) {
	return queryIntents(q, `
		SELECT id, task_id, agent_id, files, boundaries, acceptance_criteria, created_at
		FROM intents WHERE task_id = ? AND agent_id = ? ORDER BY created_at DESC
	`, taskID, agentID)
}

// AgentDeclaredFiles returns the union of files across ALL of an agent's
// intents, across all tasks. The pre-claim guard is deliberately per-agent,
// not per-task: an agent may pre-declare globally.
func AgentDeclaredFiles(q Querier, agentID string) (map[string]bool, error) {
	fileLists, err := queryStringColumn(q, `SELECT files FROM intents WHERE agent_id = ?`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent intents: %w", err)
	}

	declared := make(map[string]bool)
	for _, raw := range fileLists {
		files, decErr := decodeStringList(raw)
		if decErr != nil {
			return nil, decErr
		}
		for _, f := range files {
			declared[f] = true
		}
	}
	return declared, nil
}

// IntentCoverage is the result of a pre-claim intent check.
type IntentCoverage struct {
	HasIntent    bool     `json:"hasIntent"`
	MissingFiles []string `json:"missingFiles,omitempty"`
}

// HasIntentForFiles reports whether every file in files appears in the union
// of the agent's declared intent files.
func HasIntentForFiles(q Querier, agentID string, files []string) (*IntentCoverage, error) {
	declared, err := AgentDeclaredFiles(q, agentID)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, f := range files {
		if !declared[f] {
			missing = append(missing, f)
		}
	}
	return &IntentCoverage{HasIntent: len(missing) == 0, MissingFiles: missing}, nil
}

// IntentAgentsForTask returns the distinct agents that posted intents on a task.
func IntentAgentsForTask(q Querier, taskID string) ([]string, error) {
	return queryStringColumn(q, `SELECT DISTINCT agent_id FROM intents WHERE task_id = ?`, taskID)
}

func queryIntents(q Querier, query string, args ...any) ([]*models.Intent, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query intents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	intents := make([]*models.Intent, 0)
	for rows.Next() {
		var (
			in         models.Intent
			filesRaw   string
			boundaries sql.NullString
		)
		if scanErr := rows.Scan(&in.ID, &in.TaskID, &in.AgentID, &filesRaw, &boundaries, &in.AcceptanceCriteria, &in.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		files, decErr := decodeStringList(filesRaw)
		if decErr != nil {
			return nil, decErr
		}
		in.Files = files
		in.Boundaries = scanNullString(boundaries)
		intents = append(intents, &in)
	}
	return intents, rows.Err()
}
