package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// TemplateParams carries the fields for a new task template.
type TemplateParams struct {
	Name        string
	TitlePrefix string
	Description string
	Priority    models.TaskPriority
	Labels      []string
	StoryPoints *int
}

// CreateTemplateTx inserts a template. Names are unique.
func CreateTemplateTx(tx *sql.Tx, p TemplateParams, now int64) (*models.TaskTemplate, error) {
	var existing string
	err := tx.QueryRow(`SELECT id FROM task_templates WHERE name = ?`, p.Name).Scan(&existing)
	if err == nil {
		return nil, &models.ValidationError{Field: "name", Reason: fmt.Sprintf("template %q already exists", p.Name)}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check template name: %w", err)
	}

	labelsJSON, err := encodeStringList(p.Labels)
	if err != nil {
		return nil, err
	}
	priority := p.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	id := NewID("tmpl")
	_, err = tx.Exec(`
		INSERT INTO task_templates (id, name, title_prefix, description, priority, labels, story_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, p.Name, p.TitlePrefix, p.Description, priority, labelsJSON, p.StoryPoints, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert template: %w", err)
	}

	return &models.TaskTemplate{
		ID: id, Name: p.Name, TitlePrefix: p.TitlePrefix, Description: p.Description,
		Priority: priority, Labels: p.Labels, StoryPoints: p.StoryPoints, CreatedAt: now,
	}, nil
}

// GetTemplateByName fetches a template by its unique name.
func GetTemplateByName(q Querier, name string) (*models.TaskTemplate, error) {
	row := q.QueryRow(`
		SELECT id, name, title_prefix, description, priority, labels, story_points, created_at
		FROM task_templates WHERE name = ?
	`, name)
	t, err := scanTemplateRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "template", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template: %w", err)
	}
	return t, nil
}

// ListTemplates returns all templates sorted by name.
func ListTemplates(db *sql.DB) ([]*models.TaskTemplate, error) {
	rows, err := db.Query(`
		SELECT id, name, title_prefix, description, priority, labels, story_points, created_at
		FROM task_templates ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.TaskTemplate, 0)
	for rows.Next() {
		t, scanErr := scanTemplateRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTemplateTx removes a template by name.
func DeleteTemplateTx(tx *sql.Tx, name string) error {
	res, err := tx.Exec(`DELETE FROM task_templates WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &models.NotFoundError{Entity: "template", ID: name}
	}
	return nil
}

func scanTemplateRow(row rowScanner) (*models.TaskTemplate, error) {
	var (
		t         models.TaskTemplate
		prefix    sql.NullString
		desc      sql.NullString
		labelsRaw string
		points    sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Name, &prefix, &desc, &t.Priority, &labelsRaw, &points, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.TitlePrefix = scanNullString(prefix)
	t.Description = scanNullString(desc)
	labels, err := decodeStringList(labelsRaw)
	if err != nil {
		return nil, err
	}
	t.Labels = labels
	t.StoryPoints = scanNullInt(points)
	return &t, nil
}
