// Command mock-xendit imitates the Xendit endpoints the ledger calls so the
// checkout flow can run locally. POST /simulate/pay/{externalID} sends a PAID
// invoice callback for a previously created invoice to CALLBACK_URL.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type mock struct {
	mu            sync.Mutex
	invoices      map[string]types.XenditInvoice
	callbackURL   string
	callbackToken string
	log           zerolog.Logger
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	m := &mock{
		invoices:      make(map[string]types.XenditInvoice),
		callbackURL:   envOr("CALLBACK_URL", "http://localhost:8080/api/v1/webhooks/xendit"),
		callbackToken: envOr("CALLBACK_TOKEN", "mock-callback-token"),
		log:           log,
	}

	r := chi.NewRouter()
	r.Post("/v2/invoices", m.createInvoice)
	r.Post("/callback_virtual_accounts", m.createVA)
	r.Post("/ewallets/charges", m.createEWallet)
	r.Post("/qr_codes", m.createQR)
	r.Post("/simulate/pay/{externalID}", m.pay)

	port := ":" + envOr("PORT", "8081")
	log.Info().Str("port", port).Msg("Mock Xendit server starting")
	if err := http.ListenAndServe(port, r); err != nil {
		log.Fatal().Err(err).Msg("mock server stopped")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (m *mock) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req types.XenditInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	expiry := time.Now().Add(time.Duration(req.InvoiceDuration) * time.Second)
	inv := types.XenditInvoice{
		ID:         "inv_" + uuid.NewString(),
		ExternalID: req.ExternalID,
		Status:     "PENDING",
		Amount:     decimal.NewFromInt(req.Amount),
		InvoiceURL: "https://checkout-staging.xendit.co/web/" + req.ExternalID,
		ExpiryDate: &expiry,
	}
	m.mu.Lock()
	m.invoices[req.ExternalID] = inv
	m.mu.Unlock()

	m.log.Info().Str("external_id", req.ExternalID).Int64("amount", req.Amount).Msg("Invoice created")
	writeJSON(w, inv)
}

func (m *mock) createVA(w http.ResponseWriter, r *http.Request) {
	var req types.XenditVARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, types.XenditVA{
		ID:            "va_" + uuid.NewString(),
		ExternalID:    req.ExternalID,
		BankCode:      req.BankCode,
		AccountNumber: fmt.Sprintf("8808%012d", time.Now().UnixNano()%1e12),
		Status:        "PENDING",
	})
}

func (m *mock) createEWallet(w http.ResponseWriter, r *http.Request) {
	var req types.XenditEWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	charge := types.XenditEWalletCharge{ID: "ewc_" + uuid.NewString(), ReferenceID: req.ReferenceID, Status: "PENDING"}
	charge.Actions.MobileWebCheckoutURL = "https://ewallet-mock.xendit.co/" + req.ReferenceID
	writeJSON(w, charge)
}

func (m *mock) createQR(w http.ResponseWriter, r *http.Request) {
	var req types.XenditQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, types.XenditQRCode{
		ID:          "qr_" + uuid.NewString(),
		ReferenceID: req.ReferenceID,
		QRString:    "00020101021226660014ID.CO.QRIS.WWW" + req.ReferenceID,
		Status:      "ACTIVE",
	})
}

func (m *mock) pay(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	m.mu.Lock()
	inv, ok := m.invoices[externalID]
	m.mu.Unlock()
	if !ok {
		http.Error(w, "unknown invoice", http.StatusNotFound)
		return
	}

	paidAt := time.Now()
	body, _ := json.Marshal(types.XenditCallback{
		ID:             inv.ID,
		ExternalID:     inv.ExternalID,
		Status:         "PAID",
		Amount:         inv.Amount,
		PaidAmount:     inv.Amount,
		PaymentMethod:  "BANK_TRANSFER",
		PaymentChannel: "BCA",
		PaidAt:         &paidAt,
	})
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, m.callbackURL, bytes.NewReader(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.HeaderCallbackToken, m.callbackToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	m.log.Info().Str("external_id", externalID).Int("callback_status", resp.StatusCode).Msg("Payment callback sent")
	w.WriteHeader(resp.StatusCode)
}
