package outbox

import (
	"context"
	"encoding/json"

	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// NewEvent marshals payload into a pending outbox event.
func NewEvent(eventType, partitionKey, correlationID string, payload any) (model.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.OutboxEvent{}, errors.Wrap(err, "marshal outbox payload")
	}
	return model.OutboxEvent{
		EventType:     eventType,
		Payload:       body,
		PartitionKey:  partitionKey,
		CorrelationID: correlationID,
		Status:        StatusPending,
	}, nil
}

// EnqueueTx writes events in the caller's database transaction.
func EnqueueTx(ctx context.Context, db Execer, events ...model.OutboxEvent) error {
	for _, e := range events {
		_, err := db.Exec(ctx, `
			INSERT INTO transaction_outbox (event_type, payload, partition_key, correlation_id, status)
			VALUES ($1, $2, $3, $4, $5)
		`, e.EventType, []byte(e.Payload), e.PartitionKey, e.CorrelationID, StatusPending)
		if err != nil {
			return errors.Wrapf(err, "enqueue outbox event %s", e.EventType)
		}
	}
	return nil
}
