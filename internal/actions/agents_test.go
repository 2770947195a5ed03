package actions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

func TestRegisterThenHeartbeat(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	sub := svc.Bus.Subscribe(16)
	defer sub.Close()

	agent, err := svc.RegisterOrHeartbeat(ctx, "agent-1", []string{"go", "sql"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AgentIdle, agent.Status)
	registeredAt := agent.RegisteredAt

	clock.Advance(time.Minute)
	agent, err = svc.RegisterOrHeartbeat(ctx, "agent-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, registeredAt, agent.RegisteredAt)
	assert.Greater(t, agent.LastHeartbeat, registeredAt)
	// Capabilities survive a heartbeat that does not resend them.
	assert.Equal(t, []string{"go", "sql"}, agent.Capabilities)

	types := eventTypes(drainEvents(sub))
	assert.Contains(t, types, bus.EventAgentRegistered)
	assert.Contains(t, types, bus.EventAgentHeartbeat)
}

func TestAgentStatusDerivation(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterOrHeartbeat(ctx, "agent-1", nil, nil)
	require.NoError(t, err)

	// Working on an in_progress task makes the agent active.
	task := mustCreateTask(t, svc, "busy work")
	inProgress := models.TaskStatusInProgress
	agentID := "agent-1"
	_, err = svc.UpdateTask(ctx, task.ID, "agent-1", store.TaskPatch{
		Status:        &inProgress,
		AssignedAgent: &agentID,
	}, DefaultUpdateOptions())
	require.NoError(t, err)

	agent, err := svc.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, models.AgentActive, agent.Status)

	// Past the heartbeat window the agent reads as offline.
	clock.Advance(time.Duration(svc.Settings.AgentOfflineAfterMs+1) * time.Millisecond)
	agent, err = svc.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, models.AgentOffline, agent.Status)
}

func TestRegisterRejectsBadMetadata(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RegisterOrHeartbeat(context.Background(), "agent-1", nil, json.RawMessage(`{not json`))
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "metadata", verr.Field)
}

func TestListAgents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterOrHeartbeat(ctx, "agent-a", nil, nil)
	require.NoError(t, err)
	_, err = svc.RegisterOrHeartbeat(ctx, "agent-b", nil, json.RawMessage(`{"model":"large"}`))
	require.NoError(t, err)

	agents, err := svc.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	for _, a := range agents {
		assert.Equal(t, models.AgentIdle, a.Status)
	}
}
