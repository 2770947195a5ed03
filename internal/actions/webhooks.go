package actions

import (
	"context"
	"database/sql"
	"net/url"

	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// RegisterWebhook registers an HTTP sink for bus events. An empty eventTypes
// list subscribes to everything.
func (s *Service) RegisterWebhook(ctx context.Context, rawURL string, eventTypes []string) (*models.Webhook, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &models.ValidationError{Field: "url", Reason: "must be an absolute http(s) URL"}
	}

	now := s.now()
	var hook *models.Webhook
	err = s.transact(ctx, "registerWebhook", func(tx *sql.Tx) error {
		var txErr error
		hook, txErr = store.CreateWebhookTx(tx, rawURL, eventTypes, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return hook, nil
}

// ListWebhooks returns registered webhooks.
func (s *Service) ListWebhooks(_ context.Context, activeOnly bool) ([]*models.Webhook, error) {
	return store.ListWebhooks(s.DB, activeOnly)
}

// SetWebhookActive toggles delivery for one webhook.
func (s *Service) SetWebhookActive(ctx context.Context, id string, active bool) error {
	return s.transact(ctx, "setWebhookActive", func(tx *sql.Tx) error {
		return store.SetWebhookActiveTx(tx, id, active)
	})
}

// DeleteWebhook unregisters a webhook; past deliveries are kept.
func (s *Service) DeleteWebhook(ctx context.Context, id string) error {
	return s.transact(ctx, "deleteWebhook", func(tx *sql.Tx) error {
		return store.DeleteWebhookTx(tx, id)
	})
}

// ListDeliveries returns recent delivery attempts for one webhook.
func (s *Service) ListDeliveries(_ context.Context, webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	if _, err := store.GetWebhook(s.DB, webhookID); err != nil {
		return nil, err
	}
	return store.ListDeliveries(s.DB, webhookID, limit)
}
