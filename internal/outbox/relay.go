package outbox

import (
	"context"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Publisher is the part of the Kafka producer the relay needs.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []kafka.Message) []error
}

type RelaySettings struct {
	BatchSize int
	Interval  time.Duration
	// MaxRetries is how many failed publishes mark an event failed.
	MaxRetries int
}

type Relay struct {
	db        *pgxpool.Pool
	publisher Publisher
	logger    *zerolog.Logger
	settings  RelaySettings
}

func NewRelay(db *pgxpool.Pool, publisher Publisher, logger *zerolog.Logger, settings RelaySettings) *Relay {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Second
	}
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = 10
	}
	return &Relay{db: db, publisher: publisher, logger: logger, settings: settings}
}

// Start polls the outbox until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.settings.Interval).Int("batch_size", r.settings.BatchSize).Msg("Starting Outbox Relay")
	ticker := time.NewTicker(r.settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Stopping Outbox Relay")
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Failed to process outbox batch")
			}
		}
	}
}

// failure is an event whose publish failed, with the status it moves to.
type failure struct {
	id     int64
	status string
	err    error
}

// publish sends events as one batch and sorts them into published ids and failures.
func publish(ctx context.Context, p Publisher, events []model.OutboxEvent, maxRetries int) ([]int64, []failure) {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = kafka.Message{
			Topic:   kafka.TopicForEvent(e.EventType),
			Key:     []byte(e.PartitionKey),
			Value:   e.Payload,
			Headers: map[string]string{"event_type": e.EventType, "correlation_id": e.CorrelationID},
		}
	}

	var published []int64
	var failed []failure
	for i, err := range p.PublishBatch(ctx, msgs) {
		e := events[i]
		if err == nil {
			published = append(published, e.ID)
			continue
		}
		status := StatusPending
		if e.RetryCount+1 >= maxRetries {
			status = StatusFailed
		}
		failed = append(failed, failure{id: e.ID, status: status, err: err})
	}
	return published, failed
}

func (r *Relay) processBatch(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload, partition_key, correlation_id, retry_count
		FROM transaction_outbox
		WHERE status = 'pending'
		ORDER BY id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.settings.BatchSize)
	if err != nil {
		return err
	}

	var events []model.OutboxEvent
	for rows.Next() {
		var e model.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.PartitionKey, &e.CorrelationID, &e.RetryCount); err != nil {
			rows.Close()
			return err
		}
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	published, failed := publish(ctx, r.publisher, events, r.settings.MaxRetries)
	for _, f := range failed {
		r.logger.Error().Err(f.err).Int64("event_id", f.id).Str("status", f.status).Msg("Failed to publish outbox event")
		if _, err := tx.Exec(ctx, `
			UPDATE transaction_outbox
			SET retry_count = retry_count + 1, last_error = $2, status = $3, updated_at = NOW()
			WHERE id = $1
		`, f.id, f.err.Error(), f.status); err != nil {
			return err
		}
	}
	if len(published) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE transaction_outbox
			SET status = 'processed', updated_at = NOW()
			WHERE id = ANY($1)
		`, published); err != nil {
			return err
		}
	}

	r.logger.Debug().Int("published", len(published)).Int("failed", len(failed)).Msg("Outbox batch relayed")
	return tx.Commit(ctx)
}
