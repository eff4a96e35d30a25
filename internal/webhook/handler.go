package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
)

const maxBodyBytes = 1 << 20

type WebhookHandler struct {
	callbackToken string
	repo          WebhookRepository
}

func NewWebhookHandler(callbackToken string, repo WebhookRepository) *WebhookHandler {
	return &WebhookHandler{
		callbackToken: callbackToken,
		repo:          repo,
	}
}

// verifyCallbackToken checks the x-callback-token Xendit sends with every callback.
func verifyCallbackToken(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// HandleXendit stores a verified callback for the payment worker. It answers
// 200 for duplicates and for callbacks that carry no payment outcome so Xendit
// stops retrying them.
func (h *WebhookHandler) HandleXendit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	if !verifyCallbackToken(r.Header.Get(constants.HeaderCallbackToken), h.callbackToken) {
		logger.Warn().Msg("Invalid webhook callback token")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read request body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var cb types.XenditCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		logger.Error().Err(err).Msg("Failed to decode webhook payload")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ev, ok := cb.Normalize()
	if !ok {
		logger.Info().Str("status", cb.Status).Str("event", cb.Event).Msg("Ignoring webhook without payment outcome")
		w.WriteHeader(http.StatusOK)
		return
	}

	event, err := outbox.NewEvent(kafka.EventPaymentReceived, ev.InvoiceNumber, middleware.GetRequestIDFromContext(ctx), ev)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build payment event")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	stored, err := h.repo.StoreWebhook(ctx, ev.EventID, body, event)
	if err != nil {
		logger.Error().Err(err).Str("event_id", ev.EventID).Msg("Failed to store webhook in outbox")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !stored {
		logger.Info().Str("event_id", ev.EventID).Msg("Duplicate webhook ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	logger.Info().Str("event_id", ev.EventID).Str("invoice", ev.InvoiceNumber).Str("status", ev.Status).Msg("Webhook stored in outbox")
	w.WriteHeader(http.StatusOK)
}
