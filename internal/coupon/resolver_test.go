package coupon

import (
	"testing"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func percentCoupon(pct int64) *model.Coupon {
	return &model.Coupon{Code: "DISKON10", DiscountType: model.DiscountPercentage, DiscountValue: decimal.NewFromInt(pct), IsActive: true}
}

func TestEvaluatePercentage(t *testing.T) {
	res, err := Evaluate(percentCoupon(10), 1000000, ResolveContext{Type: model.TransactionMembership}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), res.DiscountAmount)
	assert.Equal(t, int64(900000), res.FinalAmount)
}

func TestEvaluateRejections(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	one := int64(1)

	cases := []struct {
		name   string
		mutate func(c *model.Coupon)
		amount int64
		want   error
	}{
		{"inactive", func(c *model.Coupon) { c.IsActive = false }, 1000, apperror.ErrCouponNotFound},
		{"expired", func(c *model.Coupon) { c.ValidUntil = &past }, 1000, apperror.ErrCouponExpired},
		{"not started", func(c *model.Coupon) { c.ValidFrom = &future }, 1000, apperror.ErrCouponExpired},
		{"exhausted", func(c *model.Coupon) { c.UsageLimit, c.UsageCount = &one, 1 }, 1000, apperror.ErrCouponExhausted},
		{"wrong type", func(c *model.Coupon) { c.ApplicableTypes = []model.TransactionType{model.TransactionCourse} }, 1000, apperror.ErrCouponNotApplicable},
		{"below minimum", func(c *model.Coupon) { c.MinPurchase = 5000 }, 1000, apperror.ErrCouponNotApplicable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := percentCoupon(10)
			tc.mutate(c)
			_, err := Evaluate(c, tc.amount, ResolveContext{Type: model.TransactionMembership}, now)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEvaluateBoundariesAreInclusive(t *testing.T) {
	c := percentCoupon(10)
	c.ValidFrom, c.ValidUntil = &now, &now
	_, err := Evaluate(c, 1000, ResolveContext{}, now)
	assert.NoError(t, err)
}

func TestDiscountIsClamped(t *testing.T) {
	fixed := &model.Coupon{DiscountType: model.DiscountFixed, DiscountValue: decimal.NewFromInt(150000)}
	assert.Equal(t, int64(100000), Discount(fixed, 100000))
	assert.Equal(t, int64(150000), Discount(fixed, 200000))
	assert.Equal(t, int64(0), Discount(fixed, 0))

	assert.Equal(t, int64(1000), Discount(percentCoupon(100), 1000))
	assert.Equal(t, int64(17), Discount(percentCoupon(15), 111), "half rounds away from zero")
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "DISKON10", NormalizeCode("  diskon10 "))
}
