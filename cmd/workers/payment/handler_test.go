package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/memstore"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/webhook"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApplier struct {
	err  error
	seen []types.PaymentEvent
}

func (s *stubApplier) HandlePaymentEvent(_ context.Context, ev types.PaymentEvent) error {
	s.seen = append(s.seen, ev)
	return s.err
}

func message(t *testing.T, store *memstore.Store, ev types.PaymentEvent) *kafka.Message {
	t.Helper()
	_, err := store.StoreWebhook(context.Background(), ev.EventID, []byte(`{}`), model.OutboxEvent{EventType: kafka.EventPaymentReceived})
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return &kafka.Message{
		Topic:   kafka.TopicPaymentReceived,
		Key:     []byte(ev.InvoiceNumber),
		Value:   body,
		Headers: map[string]string{"correlation_id": "req-1"},
	}
}

func TestPaymentHandlerMarksProcessed(t *testing.T) {
	store := memstore.New()
	applier := &stubApplier{}
	log := zerolog.Nop()
	ev := types.PaymentEvent{EventID: "invoice:INV-1:PAID", InvoiceNumber: "INV-1", Status: types.PaymentStatusPaid, Amount: 900000}

	err := paymentHandler(applier, store, &log)(context.Background(), message(t, store, ev))

	require.NoError(t, err)
	require.Len(t, applier.seen, 1)
	assert.Equal(t, "INV-1", applier.seen[0].InvoiceNumber)
	assert.Equal(t, webhook.StatusProcessed, store.WebhookStatus(ev.EventID))
}

func TestPaymentHandlerMarksErrorAndRetries(t *testing.T) {
	store := memstore.New()
	applier := &stubApplier{err: apperror.ErrAmountMismatch}
	log := zerolog.Nop()
	ev := types.PaymentEvent{EventID: "invoice:INV-2:PAID", InvoiceNumber: "INV-2", Status: types.PaymentStatusPaid, Amount: 1}

	err := paymentHandler(applier, store, &log)(context.Background(), message(t, store, ev))

	assert.ErrorIs(t, err, apperror.ErrAmountMismatch)
	assert.Equal(t, webhook.StatusError, store.WebhookStatus(ev.EventID))
}

func TestPaymentHandlerRejectsGarbage(t *testing.T) {
	store := memstore.New()
	log := zerolog.Nop()

	err := paymentHandler(&stubApplier{}, store, &log)(context.Background(), &kafka.Message{Value: []byte("not json")})

	assert.Error(t, err)
}
