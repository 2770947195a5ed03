package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// RegisterOrHeartbeatTx upserts an agent row and refreshes lastHeartbeat.
// The first insert sets registeredAt. Capabilities and metadata are only
// overwritten when supplied (nil leaves the stored values alone). Returns
// the row and whether this was a first registration.
func RegisterOrHeartbeatTx(tx *sql.Tx, agentID string, capabilities []string, metadata json.RawMessage, now int64) (*models.Agent, bool, error) {
	var registeredAt int64
	err := tx.QueryRow(`SELECT registered_at FROM agents WHERE agent_id = ?`, agentID).Scan(&registeredAt)
	isNew := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isNew {
		return nil, false, fmt.Errorf("failed to look up agent: %w", err)
	}

	if isNew {
		caps, encErr := encodeStringList(capabilities)
		if encErr != nil {
			return nil, false, encErr
		}
		var meta any
		if len(metadata) > 0 {
			meta = string(metadata)
		}
		_, err = tx.Exec(`
			INSERT INTO agents (agent_id, capabilities, metadata, last_heartbeat, registered_at)
			VALUES (?, ?, ?, ?, ?)
		`, agentID, caps, meta, now, now)
		if err != nil {
			return nil, false, fmt.Errorf("failed to register agent: %w", err)
		}
	} else {
		sets := "last_heartbeat = ?"
		args := []any{now}
		if capabilities != nil {
			caps, encErr := encodeStringList(capabilities)
			if encErr != nil {
				return nil, false, encErr
			}
			sets += ", capabilities = ?"
			args = append(args, caps)
		}
		if len(metadata) > 0 {
			sets += ", metadata = ?"
			args = append(args, string(metadata))
		}
		args = append(args, agentID)
		if _, err = tx.Exec(`UPDATE agents SET `+sets+` WHERE agent_id = ?`, args...); err != nil {
			return nil, false, fmt.Errorf("failed to heartbeat agent: %w", err)
		}
	}

	agent, err := getAgentByQuerier(tx, agentID)
	if err != nil {
		return nil, false, err
	}
	return agent, isNew, nil
}

// GetAgent retrieves an agent row without the derived status.
func GetAgent(db *sql.DB, agentID string) (*models.Agent, error) {
	return getAgentByQuerier(db, agentID)
}

// ListAgents returns all registered agents without the derived status; the
// facade fills Status from the heartbeat window and in-progress tasks.
func ListAgents(db *sql.DB) ([]*models.Agent, error) {
	rows, err := db.Query(`
		SELECT agent_id, capabilities, metadata, last_heartbeat, registered_at
		FROM agents ORDER BY agent_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	agents := make([]*models.Agent, 0)
	for rows.Next() {
		a, scanErr := scanAgentRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func getAgentByQuerier(q Querier, agentID string) (*models.Agent, error) {
	row := q.QueryRow(`
		SELECT agent_id, capabilities, metadata, last_heartbeat, registered_at
		FROM agents WHERE agent_id = ?
	`, agentID)
	a, err := scanAgentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "agent", ID: agentID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent: %w", err)
	}
	return a, nil
}

func scanAgentRow(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	var capsRaw string
	var metadata sql.NullString
	if err := row.Scan(&a.AgentID, &capsRaw, &metadata, &a.LastHeartbeat, &a.RegisteredAt); err != nil {
		return nil, err
	}
	caps, err := decodeStringList(capsRaw)
	if err != nil {
		return nil, err
	}
	a.Capabilities = caps
	if metadata.Valid && metadata.String != "" {
		a.Metadata = json.RawMessage(metadata.String)
	}
	return &a, nil
}
