package apperror

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindStateConflict
	KindExternalProvider
	KindNotFound
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindStateConflict:
		return "state_conflict"
	case KindExternalProvider:
		return "external_provider_error"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal_error"
	}
}

// Error is a classified failure. Sentinels are compared with errors.Is by Code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Wrap attaches a cause to a sentinel while keeping it matchable with errors.Is.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// WithMessage replaces the human-readable message of a sentinel.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg, Err: e.Err}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: message}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Err: err}
}

var (
	ErrCouponNotFound      = New(KindNotFound, "coupon_not_found", "coupon not found")
	ErrCouponExpired       = New(KindValidation, "coupon_expired", "coupon is expired or not yet valid")
	ErrCouponExhausted     = New(KindStateConflict, "coupon_exhausted", "coupon usage limit reached")
	ErrCouponNotApplicable = New(KindValidation, "coupon_not_applicable", "coupon does not apply to this purchase")
	ErrCouponCodeTaken     = New(KindStateConflict, "coupon_code_taken", "coupon code already exists")

	ErrTransactionNotFound = New(KindNotFound, "transaction_not_found", "transaction not found")
	ErrAmountMismatch      = New(KindValidation, "amount_mismatch", "paid amount does not match transaction amount")

	ErrAffiliateNotFound      = New(KindNotFound, "affiliate_not_found", "affiliate profile not found")
	ErrAffiliateCodeTaken     = New(KindStateConflict, "affiliate_code_taken", "affiliate code already in use")
	ErrAffiliateNotApproved   = New(KindForbidden, "affiliate_not_approved", "affiliate account is not approved")
	ErrApplicationExists      = New(KindStateConflict, "application_exists", "affiliate application already submitted")
	ErrLinkNotFound           = New(KindNotFound, "link_not_found", "affiliate link not found")
	ErrInvalidLinkTarget      = New(KindValidation, "invalid_link_target", "link target must be a page on the platform")
	ErrInvalidStateTransition = New(KindStateConflict, "invalid_state_transition", "invalid state transition")

	ErrWalletNotFound         = New(KindNotFound, "wallet_not_found", "wallet not found")
	ErrRevenueNotFound        = New(KindNotFound, "pending_revenue_not_found", "pending revenue not found")
	ErrPayoutNotFound         = New(KindNotFound, "payout_not_found", "payout not found")
	ErrNoBankAccount          = New(KindValidation, "no_bank_account_configured", "bank account is not configured")
	ErrBelowMinimumPayout     = New(KindValidation, "below_minimum_payout", "amount is below the minimum payout")
	ErrInsufficientBalance    = New(KindStateConflict, "insufficient_balance", "insufficient available balance")
	ErrInvalidPin             = New(KindValidation, "invalid_pin", "withdrawal PIN is incorrect")
	ErrPinRequired            = New(KindValidation, "pin_required", "withdrawal PIN must be set before requesting a payout")
	ErrInvalidPaymentChannel  = New(KindValidation, "invalid_payment_channel", "payment channel is not supported")
	ErrPaymentProvider        = New(KindExternalProvider, "payment_provider_error", "payment provider request failed")
	ErrRequestInProgress      = New(KindStateConflict, "request_in_progress", "request in progress: please retry later")
	ErrIdempotencyKeyRequired = New(KindValidation, "idempotency_key_required", "Idempotency-Key header is required")

	ErrUnauthorized = New(KindUnauthorized, "unauthorized", "authentication required")
	ErrForbidden    = New(KindForbidden, "forbidden", "insufficient permissions")
	ErrRateLimited  = New(KindStateConflict, "rate_limited", "too many requests")
)

// KindOf classifies any error; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// PublicMessage is the message safe to show to callers.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

func HTTPStatus(err error) int {
	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	case KindExternalProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
