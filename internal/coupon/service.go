package coupon

import (
	"context"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponService struct {
	repo CouponRepository
	now  func() time.Time
}

func NewCouponService(repo CouponRepository) *CouponService {
	return &CouponService{repo: repo, now: time.Now}
}

// Resolve validates a code against a purchase. It never changes usage.
func (cs *CouponService) Resolve(ctx context.Context, code string, baseAmount int64, rc ResolveContext) (*Resolution, error) {
	c, err := cs.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	res, err := Evaluate(c, baseAmount, rc, cs.now())
	if err != nil {
		middleware.GetLogger(ctx).Debug().Str("code", c.Code).Str("reason", apperror.CodeOf(err)).Msg("coupon rejected")
		return nil, err
	}
	return res, nil
}

func (cs *CouponService) CreateCoupon(ctx context.Context, req *types.CreateCouponRequest) (*model.Coupon, error) {
	logger := middleware.GetLogger(ctx)

	c := &model.Coupon{
		Code:          NormalizeCode(req.Code),
		DiscountType:  model.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		UsageLimit:    req.UsageLimit,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
		MinPurchase:   req.MinPurchase,
		IsActive:      true,
	}
	// expires_at is the legacy name of valid_until
	if c.ValidUntil == nil {
		c.ValidUntil = req.ExpiresAt
	}
	for _, t := range req.ApplicableTypes {
		c.ApplicableTypes = append(c.ApplicableTypes, model.TransactionType(t))
	}
	if req.AffiliateID != "" {
		id, err := uuid.Parse(req.AffiliateID)
		if err != nil {
			return nil, apperror.Validation("affiliate_id must be a uuid")
		}
		c.AffiliateID = &id
	}

	if !c.DiscountValue.IsPositive() {
		return nil, apperror.Validation("discount_value must be positive")
	}
	if c.DiscountType == model.DiscountPercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperror.Validation("percentage discount cannot exceed 100")
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && !c.ValidUntil.After(*c.ValidFrom) {
		return nil, apperror.Validation("valid_until must be after valid_from")
	}

	if err := cs.repo.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	logger.Info().Str("coupon_id", c.ID.String()).Str("code", c.Code).Msg("coupon created")
	return c, nil
}

func (cs *CouponService) ListCoupons(ctx context.Context, f model.ListFilter) ([]model.Coupon, int64, error) {
	return cs.repo.ListCoupons(ctx, f)
}

func (cs *CouponService) DeactivateCoupon(ctx context.Context, id uuid.UUID) error {
	if err := cs.repo.DeactivateCoupon(ctx, id); err != nil {
		return err
	}
	middleware.GetLogger(ctx).Info().Str("coupon_id", id.String()).Msg("coupon deactivated")
	return nil
}
