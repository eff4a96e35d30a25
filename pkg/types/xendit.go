package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type XenditInvoiceRequest struct {
	ExternalID         string   `json:"external_id"`
	Amount             int64    `json:"amount"`
	PayerEmail         string   `json:"payer_email"`
	Description        string   `json:"description"`
	InvoiceDuration    int64    `json:"invoice_duration"`
	Currency           string   `json:"currency"`
	SuccessRedirectURL string   `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string   `json:"failure_redirect_url,omitempty"`
	PaymentMethods     []string `json:"payment_methods,omitempty"`
}

type XenditInvoice struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	InvoiceURL string          `json:"invoice_url"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

type XenditVARequest struct {
	ExternalID     string    `json:"external_id"`
	BankCode       string    `json:"bank_code"`
	Name           string    `json:"name"`
	ExpectedAmount int64     `json:"expected_amount"`
	IsClosed       bool      `json:"is_closed"`
	IsSingleUse    bool      `json:"is_single_use"`
	ExpirationDate time.Time `json:"expiration_date"`
}

type XenditVA struct {
	ID            string `json:"id"`
	ExternalID    string `json:"external_id"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	Status        string `json:"status"`
}

type XenditEWalletRequest struct {
	ReferenceID       string                  `json:"reference_id"`
	Currency          string                  `json:"currency"`
	Amount            int64                   `json:"amount"`
	CheckoutMethod    string                  `json:"checkout_method"`
	ChannelCode       string                  `json:"channel_code"`
	ChannelProperties XenditChannelProperties `json:"channel_properties"`
}

type XenditChannelProperties struct {
	SuccessRedirectURL string `json:"success_redirect_url,omitempty"`
	MobileNumber       string `json:"mobile_number,omitempty"`
}

type XenditEWalletCharge struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Actions     struct {
		DesktopWebCheckoutURL     string `json:"desktop_web_checkout_url"`
		MobileWebCheckoutURL      string `json:"mobile_web_checkout_url"`
		MobileDeeplinkCheckoutURL string `json:"mobile_deeplink_checkout_url"`
	} `json:"actions"`
}

// CheckoutURL picks the first redirect the provider returned.
func (c *XenditEWalletCharge) CheckoutURL() string {
	switch {
	case c.Actions.DesktopWebCheckoutURL != "":
		return c.Actions.DesktopWebCheckoutURL
	case c.Actions.MobileWebCheckoutURL != "":
		return c.Actions.MobileWebCheckoutURL
	default:
		return c.Actions.MobileDeeplinkCheckoutURL
	}
}

type XenditQRRequest struct {
	ReferenceID string `json:"reference_id"`
	Type        string `json:"type"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
}

type XenditQRCode struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	QRString    string `json:"qr_string"`
	Status      string `json:"status"`
}

// XenditCallback covers invoice, virtual account and e-wallet callbacks.
type XenditCallback struct {
	ID             string          `json:"id"`
	ExternalID     string          `json:"external_id"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentChannel string          `json:"payment_channel"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`

	// virtual account payments
	PaymentID string `json:"payment_id"`
	BankCode  string `json:"bank_code"`

	// e-wallet captures
	Event string             `json:"event"`
	Data  *XenditEWalletData `json:"data,omitempty"`
}

type XenditEWalletData struct {
	ID           string          `json:"id"`
	ReferenceID  string          `json:"reference_id"`
	Status       string          `json:"status"`
	ChargeAmount decimal.Decimal `json:"charge_amount"`
	ChannelCode  string          `json:"channel_code"`
	Created      *time.Time      `json:"created,omitempty"`
}

// Normalize turns any supported callback shape into a PaymentEvent.
// ok is false for callbacks that carry no payment outcome.
func (c *XenditCallback) Normalize() (PaymentEvent, bool) {
	if c.Data != nil && c.Data.ReferenceID != "" {
		ev := PaymentEvent{
			EventID:       "ewallet:" + c.Data.ID + ":" + c.Data.Status,
			InvoiceNumber: c.Data.ReferenceID,
			Amount:        c.Data.ChargeAmount.IntPart(),
			PaymentMethod: "EWALLET_" + c.Data.ChannelCode,
			ProviderRef:   c.Data.ID,
			PaidAt:        c.Data.Created,
		}
		switch c.Data.Status {
		case "SUCCEEDED":
			ev.Status = PaymentStatusPaid
		case "FAILED", "VOIDED":
			ev.Status = PaymentStatusFailed
		default:
			return PaymentEvent{}, false
		}
		return ev, true
	}

	if c.PaymentID != "" {
		return PaymentEvent{
			EventID:       "va:" + c.PaymentID,
			InvoiceNumber: c.ExternalID,
			Status:        PaymentStatusPaid,
			Amount:        c.Amount.IntPart(),
			PaymentMethod: "VA_" + c.BankCode,
			ProviderRef:   c.PaymentID,
			PaidAt:        c.PaidAt,
		}, true
	}

	if c.ExternalID == "" {
		return PaymentEvent{}, false
	}
	ev := PaymentEvent{
		EventID:       "invoice:" + c.ID + ":" + c.Status,
		InvoiceNumber: c.ExternalID,
		Amount:        c.PaidAmount.IntPart(),
		PaymentMethod: c.PaymentMethod,
		ProviderRef:   c.ID,
		PaidAt:        c.PaidAt,
	}
	if c.PaymentChannel != "" {
		ev.PaymentMethod = c.PaymentMethod + "_" + c.PaymentChannel
	}
	if ev.Amount == 0 {
		ev.Amount = c.Amount.IntPart()
	}
	switch c.Status {
	case "PAID", "SETTLED":
		ev.Status = PaymentStatusPaid
	case "EXPIRED":
		ev.Status = PaymentStatusExpired
	default:
		return PaymentEvent{}, false
	}
	return ev, true
}
