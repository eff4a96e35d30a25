package coupon_test

import (
	"context"
	"testing"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/coupon"
	"github.com/eksporyuk/affiliate-ledger/internal/memstore"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDoesNotConsumeUsage(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := coupon.NewCouponService(s)
	limit := int64(1)

	created, err := svc.CreateCoupon(ctx, &types.CreateCouponRequest{
		Code:          "diskon10",
		DiscountType:  "PERCENTAGE",
		DiscountValue: decimal.NewFromInt(10),
		UsageLimit:    &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, "DISKON10", created.Code)

	for range 3 {
		res, err := svc.Resolve(ctx, "Diskon10", 1000000, coupon.ResolveContext{Type: model.TransactionMembership})
		require.NoError(t, err)
		assert.Equal(t, int64(900000), res.FinalAmount)
	}

	c, err := s.GetByCode(ctx, "DISKON10")
	require.NoError(t, err)
	assert.Zero(t, c.UsageCount)
}

func TestResolveUnknownAndDeactivated(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := coupon.NewCouponService(s)

	_, err := svc.Resolve(ctx, "NOPE", 1000, coupon.ResolveContext{})
	assert.ErrorIs(t, err, apperror.ErrCouponNotFound)

	c, err := svc.CreateCoupon(ctx, &types.CreateCouponRequest{Code: "HEMAT", DiscountType: "FIXED", DiscountValue: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateCoupon(ctx, c.ID))

	_, err = svc.Resolve(ctx, "HEMAT", 100000, coupon.ResolveContext{})
	assert.ErrorIs(t, err, apperror.ErrCouponNotFound)
	assert.ErrorIs(t, svc.DeactivateCoupon(ctx, uuid.New()), apperror.ErrCouponNotFound)
}

func TestCreateCouponValidation(t *testing.T) {
	ctx := context.Background()
	svc := coupon.NewCouponService(memstore.New())
	from := time.Now()
	until := from.Add(-time.Hour)

	cases := map[string]*types.CreateCouponRequest{
		"zero value":       {Code: "ZERO", DiscountType: "FIXED", DiscountValue: decimal.Zero},
		"over 100 percent": {Code: "MEGA", DiscountType: "PERCENTAGE", DiscountValue: decimal.NewFromInt(120)},
		"window reversed":  {Code: "BACK", DiscountType: "FIXED", DiscountValue: decimal.NewFromInt(1), ValidFrom: &from, ValidUntil: &until},
		"bad affiliate":    {Code: "AFF", DiscountType: "FIXED", DiscountValue: decimal.NewFromInt(1), AffiliateID: "andi"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateCoupon(ctx, req)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}

func TestCreateCouponExpiresAtAndDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := coupon.NewCouponService(memstore.New())
	expires := time.Now().Add(-time.Minute)

	_, err := svc.CreateCoupon(ctx, &types.CreateCouponRequest{Code: "LAMA", DiscountType: "FIXED", DiscountValue: decimal.NewFromInt(1000), ExpiresAt: &expires})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "lama", 10000, coupon.ResolveContext{})
	assert.ErrorIs(t, err, apperror.ErrCouponExpired)

	_, err = svc.CreateCoupon(ctx, &types.CreateCouponRequest{Code: "lama", DiscountType: "FIXED", DiscountValue: decimal.NewFromInt(1000)})
	assert.ErrorIs(t, err, apperror.ErrCouponCodeTaken)
}
