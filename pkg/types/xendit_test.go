package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeInvoiceCallback(t *testing.T) {
	raw := `{"id":"inv-1","external_id":"INV-20260101-AAAA","status":"PAID","amount":900000,"paid_amount":900000.00,"payment_method":"BANK_TRANSFER","payment_channel":"BCA"}`
	var cb XenditCallback
	require.NoError(t, json.Unmarshal([]byte(raw), &cb))

	ev, ok := cb.Normalize()
	require.True(t, ok)
	assert.Equal(t, "invoice:inv-1:PAID", ev.EventID)
	assert.Equal(t, "INV-20260101-AAAA", ev.InvoiceNumber)
	assert.Equal(t, PaymentStatusPaid, ev.Status)
	assert.Equal(t, int64(900000), ev.Amount)
	assert.Equal(t, "BANK_TRANSFER_BCA", ev.PaymentMethod)
}

func TestNormalizeVirtualAccountCallback(t *testing.T) {
	raw := `{"payment_id":"pay-9","external_id":"INV-X","amount":150000,"bank_code":"BNI","callback_virtual_account_id":"va-1"}`
	var cb XenditCallback
	require.NoError(t, json.Unmarshal([]byte(raw), &cb))

	ev, ok := cb.Normalize()
	require.True(t, ok)
	assert.Equal(t, "va:pay-9", ev.EventID)
	assert.Equal(t, "VA_BNI", ev.PaymentMethod)
	assert.Equal(t, int64(150000), ev.Amount)
}

func TestNormalizeEWalletCallback(t *testing.T) {
	raw := `{"event":"ewallet.capture","data":{"id":"ewc-1","reference_id":"INV-Y","status":"FAILED","charge_amount":50000,"channel_code":"ID_OVO"}}`
	var cb XenditCallback
	require.NoError(t, json.Unmarshal([]byte(raw), &cb))

	ev, ok := cb.Normalize()
	require.True(t, ok)
	assert.Equal(t, PaymentStatusFailed, ev.Status)
	assert.Equal(t, "INV-Y", ev.InvoiceNumber)
}

func TestNormalizeIgnoresPendingInvoice(t *testing.T) {
	cb := XenditCallback{ID: "inv-2", ExternalID: "INV-Z", Status: "PENDING"}
	_, ok := cb.Normalize()
	assert.False(t, ok)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)
}
