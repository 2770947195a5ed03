package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

func TestTemplateLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	points := 3
	_, err := svc.CreateTemplate(ctx, store.TemplateParams{
		Name:        "bugfix",
		TitlePrefix: "[bug]",
		Description: "Reproduce, fix, add regression test.",
		Priority:    models.PriorityHigh,
		Labels:      []string{"bug"},
		StoryPoints: &points,
	})
	require.NoError(t, err)

	// Duplicate names are rejected.
	_, err = svc.CreateTemplate(ctx, store.TemplateParams{Name: "bugfix"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	task, err := svc.InstantiateTemplate(ctx, "bugfix", "crash on empty config", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "[bug] crash on empty config", task.Title)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.Equal(t, []string{"bug"}, task.Labels)
	require.NotNil(t, task.StoryPoints)
	assert.Equal(t, 3, *task.StoryPoints)

	require.NoError(t, svc.DeleteTemplate(ctx, "bugfix"))
	templates, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, templates)
}

func TestRegisterWebhookValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterWebhook(ctx, "not-a-url", nil)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	hook, err := svc.RegisterWebhook(ctx, "http://127.0.0.1:9999/sink", []string{"task.created"})
	require.NoError(t, err)
	assert.True(t, hook.Active)

	require.NoError(t, svc.SetWebhookActive(ctx, hook.ID, false))
	hooks, err := svc.ListWebhooks(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, hooks)

	require.NoError(t, svc.DeleteWebhook(ctx, hook.ID))
	_, err = svc.ListDeliveries(ctx, hook.ID, 10)
	var nfe *models.NotFoundError
	require.ErrorAs(t, err, &nfe)
}
