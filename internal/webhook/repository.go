package webhook

import (
	"context"

	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	StatusReceived  = "received"
	StatusProcessed = "processed"
	StatusError     = "error"
)

type WebhookRepository interface {
	StoreWebhook(ctx context.Context, eventID string, payload []byte, event model.OutboxEvent) (bool, error)
	MarkWebhook(ctx context.Context, eventID, status string) error
}

type WebhookRepo struct {
	db *pgxpool.Pool
}

func NewWebhookRepository(db *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// StoreWebhook records a callback and its outbox event together. It reports
// false for an event id seen before.
func (wr *WebhookRepo) StoreWebhook(ctx context.Context, eventID string, payload []byte, event model.OutboxEvent) (bool, error) {
	tx, err := wr.db.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin webhook")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO psp_webhooks (event_id, payload, status) VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, payload, StatusReceived)
	if err != nil {
		return false, errors.Wrap(err, "insert webhook")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := outbox.EnqueueTx(ctx, tx, event); err != nil {
		return false, err
	}
	return true, errors.Wrap(tx.Commit(ctx), "commit webhook")
}

func (wr *WebhookRepo) MarkWebhook(ctx context.Context, eventID, status string) error {
	_, err := wr.db.Exec(ctx, `UPDATE psp_webhooks SET status = $2, updated_at = NOW() WHERE event_id = $1`, eventID, status)
	return errors.Wrap(err, "mark webhook")
}
