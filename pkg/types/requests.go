package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	Type            string `json:"type" validate:"required,oneof=MEMBERSHIP PRODUCT COURSE"`
	ItemID          string `json:"item_id" validate:"required"`
	ItemName        string `json:"item_name" validate:"required,max=200"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	DurationMonths  int    `json:"duration_months" validate:"gte=0,lte=120"`
	Quantity        int    `json:"quantity" validate:"gte=0,lte=1000"`
	CouponCode      string `json:"coupon_code" validate:"omitempty,max=50"`
	ReferralCode    string `json:"referral_code" validate:"omitempty,max=50"`
	PaymentChannel  string `json:"payment_channel" validate:"required,oneof=INVOICE VIRTUAL_ACCOUNT EWALLET QRIS"`
	BankCode        string `json:"bank_code" validate:"required_if=PaymentChannel VIRTUAL_ACCOUNT"`
	EWalletProvider string `json:"ewallet_provider" validate:"required_if=PaymentChannel EWALLET"`
	PayerEmail      string `json:"payer_email" validate:"required,email"`
	PayerName       string `json:"payer_name" validate:"required,max=100"`
	MobileNumber    string `json:"mobile_number" validate:"omitempty,e164"`
}

type ProductSimpleCheckoutRequest struct {
	ProductID    string `json:"product_id" validate:"required"`
	ProductName  string `json:"product_name" validate:"required,max=200"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	CouponCode   string `json:"coupon_code" validate:"omitempty,max=50"`
	ReferralCode string `json:"referral_code" validate:"omitempty,max=50"`
	PayerEmail   string `json:"payer_email" validate:"required,email"`
	PayerName    string `json:"payer_name" validate:"required,max=100"`
}

type CheckoutResponse struct {
	TransactionID  string `json:"transaction_id"`
	InvoiceNumber  string `json:"invoice_number"`
	Amount         int64  `json:"amount"`
	OriginalAmount int64  `json:"original_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	PaymentURL     string `json:"payment_url"`
	PaymentChannel string `json:"payment_channel"`
	AccountNumber  string `json:"account_number,omitempty"`
	QRString       string `json:"qr_string,omitempty"`
	Fallback       bool   `json:"fallback"`
}

type ValidateCouponRequest struct {
	Code   string `json:"code" validate:"required,max=50"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Type   string `json:"type" validate:"omitempty,oneof=MEMBERSHIP PRODUCT COURSE"`
}

type ValidateCouponResponse struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalAmount    int64  `json:"final_amount"`
	AffiliateID    string `json:"affiliate_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

type CreateCouponRequest struct {
	Code            string          `json:"code" validate:"required,alphanum,min=3,max=50"`
	DiscountType    string          `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	UsageLimit      *int64          `json:"usage_limit" validate:"omitempty,gt=0"`
	AffiliateID     string          `json:"affiliate_id" validate:"omitempty,uuid"`
	ValidFrom       *time.Time      `json:"valid_from"`
	ValidUntil      *time.Time      `json:"valid_until"`
	ExpiresAt       *time.Time      `json:"expires_at"`
	ApplicableTypes []string        `json:"applicable_types" validate:"dive,oneof=MEMBERSHIP PRODUCT COURSE"`
	MinPurchase     int64           `json:"min_purchase" validate:"gte=0"`
}

type ApplyAffiliateRequest struct {
	Motivation    string `json:"motivation" validate:"required,min=20,max=1000"`
	PreferredCode string `json:"preferred_code" validate:"omitempty,min=3,max=30"`
}

type BankAccountRequest struct {
	BankName      string `json:"bank_name" validate:"required,max=50"`
	AccountName   string `json:"account_name" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
	Pin           string `json:"pin" validate:"omitempty,numeric,len=6"`
}

type CreateLinkRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=MEMBERSHIP PRODUCT COURSE"`
	TargetID   string `json:"target_id" validate:"required"`
	TargetURL  string `json:"target_url" validate:"required,url"`
}

type PayoutRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Notes  string `json:"notes" validate:"max=500"`
	Pin    string `json:"pin" validate:"omitempty,numeric,len=6"`
}

type ReviewRequest struct {
	Reason         string `json:"reason" validate:"max=500"`
	AdjustedAmount *int64 `json:"adjusted_amount" validate:"omitempty,gte=0"`
}

type ConfirmTransactionRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,max=50"`
	ProviderRef   string `json:"provider_ref" validate:"max=100"`
}

type EarningsResponse struct {
	Balance          int64 `json:"balance"`
	LockedBalance    int64 `json:"locked_balance"`
	PendingBalance   int64 `json:"pending_balance"`
	AvailableBalance int64 `json:"available_balance"`
	TotalEarnings    int64 `json:"total_earnings"`
	TotalPayout      int64 `json:"total_payout"`
	TotalConversions int64 `json:"total_conversions"`
	PendingPayouts   int64 `json:"pending_payouts"`
	MinPayout        int64 `json:"min_payout"`
	PayoutAdminFee   int64 `json:"payout_admin_fee"`
}
