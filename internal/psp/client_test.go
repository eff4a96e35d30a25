package psp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *XenditClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewXenditClient(config.XenditConfig{SecretKey: "xnd_test", BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestCreateInvoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/invoices", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "xnd_test", user)

		var req types.XenditInvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "INV-1", req.ExternalID)
		assert.Equal(t, int64(900000), req.Amount)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "inv_123",
			"external_id": req.ExternalID,
			"status":      "PENDING",
			"amount":      req.Amount,
			"invoice_url": "https://checkout.xendit.co/web/inv_123",
		})
	})

	inv, err := c.CreateInvoice(context.Background(), &types.XenditInvoiceRequest{ExternalID: "INV-1", Amount: 900000, Currency: "IDR"})
	require.NoError(t, err)
	assert.Equal(t, "inv_123", inv.ID)
	assert.Equal(t, "https://checkout.xendit.co/web/inv_123", inv.InvoiceURL)
}

func TestProviderErrorIsClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_code":"API_VALIDATION_ERROR"}`))
	})

	_, err := c.CreateVirtualAccount(context.Background(), &types.XenditVARequest{ExternalID: "INV-2", BankCode: "BCA"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrPaymentProvider)
	assert.Equal(t, http.StatusBadGateway, apperror.HTTPStatus(err))
}

func TestTimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	c := NewXenditClient(config.XenditConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := c.CreateQRCode(context.Background(), &types.XenditQRRequest{ReferenceID: "INV-3", Type: "DYNAMIC", Amount: 1})
	assert.ErrorIs(t, err, apperror.ErrPaymentProvider)
}
