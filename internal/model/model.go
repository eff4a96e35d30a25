package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Model struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

type TransactionType string

const (
	TransactionMembership TransactionType = "MEMBERSHIP"
	TransactionProduct    TransactionType = "PRODUCT"
	TransactionCourse     TransactionType = "COURSE"
)

type Transaction struct {
	ID              uuid.UUID           `json:"id"`
	InvoiceNumber   string              `json:"invoice_number"`
	UserID          uuid.UUID           `json:"user_id"`
	PayerEmail      string              `json:"payer_email"`
	Amount          int64               `json:"amount"`
	OriginalAmount  int64               `json:"original_amount"`
	DiscountAmount  int64               `json:"discount_amount"`
	Status          TransactionStatus   `json:"status"`
	Type            TransactionType     `json:"type"`
	PaymentProvider string              `json:"payment_provider"`
	PaymentMethod   string              `json:"payment_method"`
	ProviderRef     string              `json:"provider_ref,omitempty"`
	PaymentURL      string              `json:"payment_url,omitempty"`
	CouponID        *uuid.UUID          `json:"coupon_id,omitempty"`
	AffiliateID     *uuid.UUID          `json:"affiliate_id,omitempty"`
	Metadata        TransactionMetadata `json:"metadata"`
	FailureReason   string              `json:"failure_reason,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	Model
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Coupon struct {
	ID              uuid.UUID         `json:"id"`
	Code            string            `json:"code"`
	DiscountType    DiscountType      `json:"discount_type"`
	DiscountValue   decimal.Decimal   `json:"discount_value"`
	UsageLimit      *int64            `json:"usage_limit,omitempty"`
	UsageCount      int64             `json:"usage_count"`
	IsActive        bool              `json:"is_active"`
	AffiliateID     *uuid.UUID        `json:"affiliate_id,omitempty"`
	ValidFrom       *time.Time        `json:"valid_from,omitempty"`
	ValidUntil      *time.Time        `json:"valid_until,omitempty"`
	ApplicableTypes []TransactionType `json:"applicable_types,omitempty"`
	MinPurchase     int64             `json:"min_purchase"`
	Model
}

type ApplicationStatus string

const (
	ApplicationNone     ApplicationStatus = "NONE"
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

type BankAccount struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

func (b BankAccount) Configured() bool {
	return b.BankName != "" && b.AccountName != "" && b.AccountNumber != ""
}

type AffiliateProfile struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	AffiliateCode    string            `json:"affiliate_code"`
	ShortLink        string            `json:"short_link"`
	CommissionRate   *decimal.Decimal  `json:"commission_rate,omitempty"`
	Status           ApplicationStatus `json:"status"`
	IsActive         bool              `json:"is_active"`
	Motivation       string            `json:"motivation,omitempty"`
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	Bank             BankAccount       `json:"bank"`
	PinHash          string            `json:"-"`
	TotalEarnings    int64             `json:"total_earnings"`
	TotalConversions int64             `json:"total_conversions"`
	AppliedAt        time.Time         `json:"applied_at"`
	ReviewedAt       *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy       *uuid.UUID        `json:"reviewed_by,omitempty"`
	Model
}

// CanEarn reports whether sales may be attributed to the affiliate.
func (p *AffiliateProfile) CanEarn() bool {
	return p != nil && p.Status == ApplicationApproved && p.IsActive
}

type AffiliateLink struct {
	ID          uuid.UUID       `json:"id"`
	AffiliateID uuid.UUID       `json:"affiliate_id"`
	Code        string          `json:"code"`
	TargetType  TransactionType `json:"target_type"`
	TargetID    string          `json:"target_id"`
	TargetURL   string          `json:"target_url"`
	Clicks      int64           `json:"clicks"`
	Model
}

type Wallet struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Balance        int64     `json:"balance"`
	LockedBalance  int64     `json:"locked_balance"`
	PendingBalance int64     `json:"pending_balance"`
	TotalEarnings  int64     `json:"total_earnings"`
	TotalPayout    int64     `json:"total_payout"`
	Model
}

type RevenueType string

const (
	RevenueAffiliateCommission RevenueType = "AFFILIATE_COMMISSION"
	RevenueAdminFee            RevenueType = "ADMIN_FEE"
	RevenueFounderShare        RevenueType = "FOUNDER_SHARE"
	RevenueCofounderShare      RevenueType = "COFOUNDER_SHARE"
)

type RevenueStatus string

const (
	RevenuePending  RevenueStatus = "PENDING"
	RevenueApproved RevenueStatus = "APPROVED"
	RevenueRejected RevenueStatus = "REJECTED"
	RevenueMatured  RevenueStatus = "MATURED"
)

type PendingRevenue struct {
	ID             uuid.UUID       `json:"id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Amount         int64           `json:"amount"`
	AdjustedAmount *int64          `json:"adjusted_amount,omitempty"`
	Type           RevenueType     `json:"type"`
	Percentage     decimal.Decimal `json:"percentage"`
	Status         RevenueStatus   `json:"status"`
	Note           string          `json:"note,omitempty"`
	ReviewedBy     *uuid.UUID      `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	MatureAfter    time.Time       `json:"mature_after"`
	Model
}

// Credited is the amount a matured entry adds to the wallet balance.
func (r *PendingRevenue) Credited() int64 {
	if r.AdjustedAmount != nil {
		return *r.AdjustedAmount
	}
	return r.Amount
}

// Settled reports whether the entry has been merged into the wallet balance.
func (r *PendingRevenue) Settled() bool {
	return r.Status == RevenueApproved || r.Status == RevenueMatured
}

// RevenueDraft is a commission event not yet written to the ledger.
type RevenueDraft struct {
	UserID        uuid.UUID       `json:"user_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        int64           `json:"amount"`
	Type          RevenueType     `json:"type"`
	Percentage    decimal.Decimal `json:"percentage"`
	MatureAfter   time.Time       `json:"mature_after"`
}

type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "PENDING"
	PayoutApproved PayoutStatus = "APPROVED"
	PayoutPaid     PayoutStatus = "PAID"
	PayoutRejected PayoutStatus = "REJECTED"
)

type Payout struct {
	ID              uuid.UUID    `json:"id"`
	UserID          uuid.UUID    `json:"user_id"`
	WalletID        uuid.UUID    `json:"wallet_id"`
	Amount          int64        `json:"amount"`
	AdminFee        int64        `json:"admin_fee"`
	NetAmount       int64        `json:"net_amount"`
	Status          PayoutStatus `json:"status"`
	Bank            BankAccount  `json:"bank"`
	Notes           string       `json:"notes,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	ApprovedBy      *uuid.UUID   `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time   `json:"approved_at,omitempty"`
	PaidAt          *time.Time   `json:"paid_at,omitempty"`
	Model
}

type WalletEntryType string

const (
	EntryCredit     WalletEntryType = "CREDIT"
	EntryPayoutHold WalletEntryType = "PAYOUT_HOLD"
	EntryPayout     WalletEntryType = "PAYOUT"
)

type WalletEntry struct {
	ID          int64           `json:"id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	Type        WalletEntryType `json:"type"`
	Amount      int64           `json:"amount"`
	Reference   uuid.UUID       `json:"reference"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LedgerEffect is what a locked wallet mutation records besides the rows it changes.
type LedgerEffect struct {
	Entry *WalletEntry
	Event *OutboxEvent
	// Earnings is added to the wallet owner's affiliate profile total.
	Earnings int64
}

// Settlement carries every write that turns a PENDING transaction into SUCCESS.
type Settlement struct {
	TransactionID uuid.UUID
	PaidAt        time.Time
	PaymentMethod string
	ProviderRef   string
	CouponID      *uuid.UUID
	Revenues      []RevenueDraft
	Events        []OutboxEvent
}

type OutboxEvent struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PartitionKey  string          `json:"partition_key"`
	Status        string          `json:"status"`
	CorrelationID string          `json:"correlation_id"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	Model
}

type PspWebhook struct {
	ID      uuid.UUID       `json:"id"`
	EventID string          `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
	Status  string          `json:"status"`
	Model
}

type ReminderStatus string

const (
	ReminderClaimed ReminderStatus = "CLAIMED"
	ReminderSent    ReminderStatus = "SENT"
	ReminderFailed  ReminderStatus = "FAILED"
)

type ReminderLog struct {
	ID          uuid.UUID      `json:"id"`
	ReminderKey string         `json:"reminder_key"`
	UserID      uuid.UUID      `json:"user_id"`
	IntervalKey string         `json:"interval_key"`
	Channels    []string       `json:"channels"`
	Status      ReminderStatus `json:"status"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListFilter is the common paging and filtering input of list queries.
type ListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *uuid.UUID
	Search string
}

func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type PayoutTotals struct {
	Pending  int64
	Approved int64
	Paid     int64
}

type RevenueTotals struct {
	Pending  int64
	Credited int64
	Rejected int64
}
