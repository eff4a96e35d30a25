package types

import "time"

// Response is the JSON envelope returned by every endpoint.
type Response struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Code       string      `json:"code,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) *Pagination {
	if limit <= 0 {
		limit = 1
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// PaymentEvent is a provider callback normalized for the payment worker.
type PaymentEvent struct {
	EventID       string     `json:"event_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	ProviderRef   string     `json:"provider_ref"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

const (
	PaymentStatusPaid    = "PAID"
	PaymentStatusExpired = "EXPIRED"
	PaymentStatusFailed  = "FAILED"
)

// BalanceUpdateEvent is emitted for every wallet-visible ledger change.
type BalanceUpdateEvent struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	WalletID  string    `json:"wallet_id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	At        time.Time `json:"at"`
}

const (
	BalanceRevenuePending  = "revenue.pending"
	BalanceRevenueCredited = "revenue.credited"
	BalanceRevenueRejected = "revenue.rejected"
	BalancePayoutRequested = "payout.requested"
	BalancePayoutApproved  = "payout.approved"
	BalancePayoutPaid      = "payout.paid"
	BalancePayoutRejected  = "payout.rejected"
)

