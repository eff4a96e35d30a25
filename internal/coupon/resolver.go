package coupon

import (
	"slices"
	"strings"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/commission"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/google/uuid"
)

// ResolveContext describes the purchase a code is applied to.
type ResolveContext struct {
	Type   model.TransactionType
	UserID uuid.UUID
}

type Resolution struct {
	Coupon          *model.Coupon
	DiscountAmount  int64
	FinalAmount     int64
	AffiliateUserID *uuid.UUID
}

// NormalizeCode is the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate applies a coupon to baseAmount without side effects.
func Evaluate(c *model.Coupon, baseAmount int64, rc ResolveContext, now time.Time) (*Resolution, error) {
	if c == nil || !c.IsActive {
		return nil, apperror.ErrCouponNotFound
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, apperror.ErrCouponExpired
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return nil, apperror.ErrCouponExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return nil, apperror.ErrCouponExhausted
	}
	if len(c.ApplicableTypes) > 0 && rc.Type != "" && !slices.Contains(c.ApplicableTypes, rc.Type) {
		return nil, apperror.ErrCouponNotApplicable
	}
	if baseAmount < c.MinPurchase {
		return nil, apperror.ErrCouponNotApplicable.WithMessage("purchase amount is below the coupon minimum")
	}

	discount := Discount(c, baseAmount)
	return &Resolution{
		Coupon:          c,
		DiscountAmount:  discount,
		FinalAmount:     baseAmount - discount,
		AffiliateUserID: c.AffiliateID,
	}, nil
}

// Discount is clamped to [0, baseAmount] so the price never goes negative.
func Discount(c *model.Coupon, baseAmount int64) int64 {
	if baseAmount <= 0 {
		return 0
	}
	var d int64
	switch c.DiscountType {
	case model.DiscountPercentage:
		d = commission.Percent(baseAmount, c.DiscountValue)
	case model.DiscountFixed:
		d = c.DiscountValue.Round(0).IntPart()
	}
	return min(max(d, 0), baseAmount)
}
