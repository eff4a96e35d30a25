package webhook_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/memstore"
	"github.com/eksporyuk/affiliate-ledger/internal/webhook"
	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paidInvoice = `{"id":"inv-1","external_id":"INV-20260101-AAAA0001","status":"PAID","amount":900000,"paid_amount":900000,"payment_method":"BANK_TRANSFER","payment_channel":"BCA"}`

func post(h *webhook.WebhookHandler, token, body string) int {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/xendit", strings.NewReader(body))
	if token != "" {
		req.Header.Set(constants.HeaderCallbackToken, token)
	}
	rec := httptest.NewRecorder()
	h.HandleXendit(rec, req)
	return rec.Code
}

func TestRejectsInvalidToken(t *testing.T) {
	s := memstore.New()
	h := webhook.NewWebhookHandler("secret-token", s)

	assert.Equal(t, http.StatusUnauthorized, post(h, "", paidInvoice))
	assert.Equal(t, http.StatusUnauthorized, post(h, "wrong", paidInvoice))
	assert.Empty(t, s.Events())
}

func TestStoresPaymentEventOnce(t *testing.T) {
	s := memstore.New()
	h := webhook.NewWebhookHandler("secret-token", s)

	assert.Equal(t, http.StatusOK, post(h, "secret-token", paidInvoice))
	assert.Equal(t, http.StatusOK, post(h, "secret-token", paidInvoice))

	events := s.EventsOfType(kafka.EventPaymentReceived)
	require.Len(t, events, 1)
	assert.Equal(t, "INV-20260101-AAAA0001", events[0].PartitionKey)

	var ev types.PaymentEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &ev))
	assert.Equal(t, types.PaymentStatusPaid, ev.Status)
	assert.Equal(t, int64(900000), ev.Amount)
	assert.Equal(t, webhook.StatusReceived, s.WebhookStatus("invoice:inv-1:PAID"))
}

func TestIgnoresCallbacksWithoutOutcome(t *testing.T) {
	s := memstore.New()
	h := webhook.NewWebhookHandler("secret-token", s)

	pending := `{"id":"inv-2","external_id":"INV-2","status":"PENDING","amount":1000}`
	assert.Equal(t, http.StatusOK, post(h, "secret-token", pending))
	assert.Equal(t, http.StatusBadRequest, post(h, "secret-token", "{not json"))
	assert.Empty(t, s.Events())
}
