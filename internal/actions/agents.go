package actions

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// RegisterOrHeartbeat upserts an agent and refreshes its heartbeat. First
// registration emits agent.registered, subsequent calls agent.heartbeat.
func (s *Service) RegisterOrHeartbeat(ctx context.Context, agentID string, capabilities []string, metadata json.RawMessage) (*models.Agent, error) {
	if agentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	if len(metadata) > 0 && !json.Valid(metadata) {
		return nil, &models.ValidationError{Field: "metadata", Reason: "must be valid JSON"}
	}

	now := s.now()
	var (
		agent *models.Agent
		isNew bool
	)
	err := s.transact(ctx, "registerOrHeartbeat", func(tx *sql.Tx) error {
		var txErr error
		agent, isNew, txErr = store.RegisterOrHeartbeatTx(tx, agentID, capabilities, metadata, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if derr := s.deriveAgentStatus(agent, now); derr != nil {
		return nil, derr
	}

	eventType := bus.EventAgentHeartbeat
	if isNew {
		eventType = bus.EventAgentRegistered
	}
	s.publish(eventType, now, agent)
	return agent, nil
}

// GetAgent returns one agent with derived status.
func (s *Service) GetAgent(_ context.Context, agentID string) (*models.Agent, error) {
	now := s.now()
	agent, err := store.GetAgent(s.DB, agentID)
	if err != nil {
		return nil, err
	}
	if err := s.deriveAgentStatus(agent, now); err != nil {
		return nil, err
	}
	return agent, nil
}

// ListAgents returns every registered agent with derived status.
func (s *Service) ListAgents(_ context.Context) ([]*models.Agent, error) {
	now := s.now()
	agents, err := store.ListAgents(s.DB)
	if err != nil {
		return nil, err
	}
	for _, agent := range agents {
		if err := s.deriveAgentStatus(agent, now); err != nil {
			return nil, err
		}
	}
	return agents, nil
}

// deriveAgentStatus fills Status: offline past the heartbeat window,
// otherwise active iff the agent has an in_progress task.
func (s *Service) deriveAgentStatus(agent *models.Agent, now int64) error {
	if now-agent.LastHeartbeat > s.Settings.AgentOfflineAfterMs {
		agent.Status = models.AgentOffline
		return nil
	}
	busy, err := store.AgentHasInProgressTask(s.DB, agent.AgentID)
	if err != nil {
		return err
	}
	if busy {
		agent.Status = models.AgentActive
	} else {
		agent.Status = models.AgentIdle
	}
	return nil
}
