package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/webhook"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/rs/zerolog"
)

// PaymentApplier settles or fails the transaction a callback refers to.
type PaymentApplier interface {
	HandlePaymentEvent(ctx context.Context, ev types.PaymentEvent) error
}

// paymentHandler applies stored Xendit callbacks. A failed attempt marks the
// webhook as errored; the consumer retries and finally dead-letters it.
func paymentHandler(payments PaymentApplier, webhooks webhook.WebhookRepository, log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		requestID := msg.Headers["correlation_id"]
		if requestID == "" {
			requestID = fmt.Sprintf("gen-%s", time.Now().Format("20060102150405"))
		}
		l := log.With().Str("request_id", requestID).Str("topic", msg.Topic).Int64("offset", msg.Offset).Logger()
		ctx = middleware.WithRequestID(ctx, requestID)
		ctx = middleware.WithLogger(ctx, &l)

		var ev types.PaymentEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			l.Error().Err(err).Msg("Failed to unmarshal payment event")
			return err
		}
		l.Info().Str("event_id", ev.EventID).Str("invoice", ev.InvoiceNumber).Str("status", ev.Status).Msg("Processing payment event")

		if err := payments.HandlePaymentEvent(ctx, ev); err != nil {
			l.Error().Err(err).Str("event_id", ev.EventID).Msg("Failed to apply payment event")
			if merr := webhooks.MarkWebhook(ctx, ev.EventID, webhook.StatusError); merr != nil {
				l.Error().Err(merr).Msg("Failed to mark webhook as errored")
			}
			return err
		}

		if err := webhooks.MarkWebhook(ctx, ev.EventID, webhook.StatusProcessed); err != nil {
			// the payment is applied; a stale status is only cosmetic
			l.Warn().Err(err).Str("event_id", ev.EventID).Msg("Failed to mark webhook as processed")
		}
		return nil
	}
}
