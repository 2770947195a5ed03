package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotcommander/scrum/internal/models"
)

// CreateWebhookTx registers an HTTP sink. An empty eventTypes list means
// "deliver everything".
func CreateWebhookTx(tx *sql.Tx, url string, eventTypes []string, now int64) (*models.Webhook, error) {
	typesJSON, err := encodeStringList(eventTypes)
	if err != nil {
		return nil, err
	}

	id := NewID("hook")
	_, err = tx.Exec(`
		INSERT INTO webhooks (id, url, event_types, active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, id, url, typesJSON, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert webhook: %w", err)
	}

	return &models.Webhook{ID: id, URL: url, EventTypes: eventTypes, Active: true, CreatedAt: now}, nil
}

// SetWebhookActiveTx toggles a webhook without losing its registration.
func SetWebhookActiveTx(tx *sql.Tx, id string, active bool) error {
	res, err := tx.Exec(`UPDATE webhooks SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &models.NotFoundError{Entity: "webhook", ID: id}
	}
	return nil
}

// DeleteWebhookTx removes a webhook. Past deliveries are kept.
func DeleteWebhookTx(tx *sql.Tx, id string) error {
	res, err := tx.Exec(`DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &models.NotFoundError{Entity: "webhook", ID: id}
	}
	return nil
}

// ListWebhooks returns webhooks, optionally only active ones.
func ListWebhooks(q Querier, activeOnly bool) ([]*models.Webhook, error) {
	query := `SELECT id, url, event_types, active, created_at FROM webhooks`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := q.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.Webhook, 0)
	for rows.Next() {
		var (
			w        models.Webhook
			typesRaw string
			active   int
		)
		if scanErr := rows.Scan(&w.ID, &w.URL, &typesRaw, &active, &w.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		types, decErr := decodeStringList(typesRaw)
		if decErr != nil {
			return nil, decErr
		}
		w.EventTypes = types
		w.Active = active != 0
		out = append(out, &w)
	}
	return out, rows.Err()
}

// GetWebhook fetches one webhook by id.
func GetWebhook(q Querier, id string) (*models.Webhook, error) {
	var (
		w        models.Webhook
		typesRaw string
		active   int
	)
	err := q.QueryRow(`
		SELECT id, url, event_types, active, created_at FROM webhooks WHERE id = ?
	`, id).Scan(&w.ID, &w.URL, &typesRaw, &active, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "webhook", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webhook: %w", err)
	}
	types, err := decodeStringList(typesRaw)
	if err != nil {
		return nil, err
	}
	w.EventTypes = types
	w.Active = active != 0
	return &w, nil
}

// RecordDeliveryTx appends one delivery attempt outcome.
func RecordDeliveryTx(tx *sql.Tx, webhookID, eventType, payload string, statusCode int, deliveryErr string, now int64) (*models.WebhookDelivery, error) {
	var statusVal, errVal any
	if statusCode != 0 {
		statusVal = statusCode
	}
	if deliveryErr != "" {
		errVal = deliveryErr
	}

	id := NewID("delivery")
	_, err := tx.Exec(`
		INSERT INTO webhook_deliveries (id, webhook_id, event_type, payload, status_code, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, webhookID, eventType, payload, statusVal, errVal, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record delivery: %w", err)
	}

	return &models.WebhookDelivery{
		ID: id, WebhookID: webhookID, EventType: eventType, Payload: payload,
		StatusCode: statusCode, Error: deliveryErr, CreatedAt: now,
	}, nil
}

// ListDeliveries returns recent delivery attempts for one webhook, newest-first.
func ListDeliveries(db *sql.DB, webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, webhook_id, event_type, payload, status_code, error, created_at
		FROM webhook_deliveries WHERE webhook_id = ? ORDER BY created_at DESC LIMIT ?
	`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*models.WebhookDelivery, 0)
	for rows.Next() {
		var (
			d       models.WebhookDelivery
			status  sql.NullInt64
			dErrStr sql.NullString
		)
		if scanErr := rows.Scan(&d.ID, &d.WebhookID, &d.EventType, &d.Payload, &status, &dErrStr, &d.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		if status.Valid {
			d.StatusCode = int(status.Int64)
		}
		d.Error = scanNullString(dErrStr)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
