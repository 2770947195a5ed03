package actions

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// CreateTemplate registers a reusable task shape under a unique name.
func (s *Service) CreateTemplate(ctx context.Context, p store.TemplateParams) (*models.TaskTemplate, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Priority != "" && !p.Priority.IsValid() {
		return nil, &models.ValidationError{Field: "priority", Reason: "unknown priority"}
	}

	now := s.now()
	var tmpl *models.TaskTemplate
	err := s.transact(ctx, "createTemplate", func(tx *sql.Tx) error {
		var txErr error
		tmpl, txErr = store.CreateTemplateTx(tx, p, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// ListTemplates returns every template sorted by name.
func (s *Service) ListTemplates(_ context.Context) ([]*models.TaskTemplate, error) {
	return store.ListTemplates(s.DB)
}

// DeleteTemplate removes a template by name.
func (s *Service) DeleteTemplate(ctx context.Context, name string) error {
	return s.transact(ctx, "deleteTemplate", func(tx *sql.Tx) error {
		return store.DeleteTemplateTx(tx, name)
	})
}

// InstantiateTemplate creates a task from a template's defaults. The title is
// the template's prefix followed by the supplied title.
func (s *Service) InstantiateTemplate(ctx context.Context, name, title, agentID string) (*models.Task, error) {
	tmpl, err := store.GetTemplateByName(s.DB, name)
	if err != nil {
		return nil, err
	}

	fullTitle := strings.TrimSpace(tmpl.TitlePrefix + " " + title)
	return s.CreateTask(ctx, CreateTaskInput{
		Title:       fullTitle,
		Description: tmpl.Description,
		Priority:    tmpl.Priority,
		Labels:      tmpl.Labels,
		StoryPoints: tmpl.StoryPoints,
		AgentID:     agentID,
	})
}
