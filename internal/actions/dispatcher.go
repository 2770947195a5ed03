package actions

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// Dispatcher forwards bus events to registered webhooks. It runs as its own
// subscriber so slow endpoints never block facade writers; delivery is
// at-most-once per webhook with a short retry window, and every attempt's
// outcome is recorded.
type Dispatcher struct {
	svc    *Service
	client *http.Client
	sub    *bus.Subscription
}

// NewDispatcher builds a dispatcher over the facade's bus and store. The
// subscription is taken here, not in Run, so events published between
// construction and the Run loop starting are queued rather than lost. A nil
// client gets a 10s-timeout default.
func NewDispatcher(svc *Service, client *http.Client) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dispatcher{svc: svc, client: client, sub: svc.Bus.Subscribe(0)}
}

// Run consumes events until ctx is cancelled. The subscription is closed on
// return; a Dispatcher runs once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-d.sub.C:
			if !ok {
				return nil
			}
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev bus.Event) {
	hooks, err := store.ListWebhooks(d.svc.DB, true)
	if err != nil {
		d.svc.Logger.Error("webhook lookup failed", "error", err)
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		d.svc.Logger.Error("event marshal failed", "type", ev.Type, "error", err)
		return
	}

	for _, hook := range hooks {
		if !webhookWants(hook, ev.Type) {
			continue
		}
		statusCode, deliveryErr := d.deliver(ctx, hook, payload)

		errText := ""
		if deliveryErr != nil {
			errText = deliveryErr.Error()
			d.svc.Logger.Warn("webhook delivery failed",
				"webhook", hook.ID, "type", ev.Type, "error", deliveryErr)
		}
		recordErr := store.Transact(d.svc.DB, func(tx *sql.Tx) error {
			_, err := store.RecordDeliveryTx(tx, hook.ID, ev.Type, string(payload), statusCode, errText, d.svc.now())
			return err
		})
		if recordErr != nil {
			d.svc.Logger.Error("delivery record failed", "webhook", hook.ID, "error", recordErr)
		}
	}
}

// deliver POSTs the payload with a bounded exponential retry. Non-2xx counts
// as failure and is retried like a transport error.
func (d *Dispatcher) deliver(ctx context.Context, hook *models.Webhook, payload []byte) (int, error) {
	var statusCode int
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		statusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	err := backoff.Retry(attempt, backoff.WithContext(b, ctx))
	return statusCode, err
}

func webhookWants(hook *models.Webhook, eventType string) bool {
	if len(hook.EventTypes) == 0 {
		return true
	}
	for _, t := range hook.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}
