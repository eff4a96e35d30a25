package coupon

import (
	"context"
	"strings"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	CreateCoupon(ctx context.Context, c *model.Coupon) error
	ListCoupons(ctx context.Context, f model.ListFilter) ([]model.Coupon, int64, error)
	DeactivateCoupon(ctx context.Context, id uuid.UUID) error
}

type CouponRepo struct {
	db *pgxpool.Pool
}

func NewCouponRepository(db *pgxpool.Pool) *CouponRepo {
	return &CouponRepo{db: db}
}

const couponColumns = `id, code, discount_type, discount_value, usage_limit, usage_count, is_active,
	affiliate_id, valid_from, valid_until, applicable_types, min_purchase, created_at, updated_at`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	var types []string
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.UsageLimit, &c.UsageCount, &c.IsActive,
		&c.AffiliateID, &c.ValidFrom, &c.ValidUntil, &types, &c.MinPurchase, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		c.ApplicableTypes = append(c.ApplicableTypes, model.TransactionType(t))
	}
	return &c, nil
}

func (cr *CouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(cr.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE LOWER(code) = LOWER($1)`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrCouponNotFound
	}
	return c, errors.Wrap(err, "get coupon by code")
}

func (cr *CouponRepo) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	types := make([]string, 0, len(c.ApplicableTypes))
	for _, t := range c.ApplicableTypes {
		types = append(types, string(t))
	}
	err := cr.db.QueryRow(ctx, `
		INSERT INTO coupons (code, discount_type, discount_value, usage_limit, is_active, affiliate_id,
			valid_from, valid_until, applicable_types, min_purchase)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7, $8, $9)
		RETURNING id, usage_count, is_active, created_at, updated_at
	`, c.Code, c.DiscountType, c.DiscountValue, c.UsageLimit, c.AffiliateID, c.ValidFrom, c.ValidUntil, types, c.MinPurchase).
		Scan(&c.ID, &c.UsageCount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.ErrCouponCodeTaken
	}
	return errors.Wrap(err, "create coupon")
}

func (cr *CouponRepo) ListCoupons(ctx context.Context, f model.ListFilter) ([]model.Coupon, int64, error) {
	where := `WHERE ($1 = '' OR code ILIKE '%' || $1 || '%')`
	switch strings.ToUpper(f.Status) {
	case "ACTIVE":
		where += ` AND is_active`
	case "INACTIVE":
		where += ` AND NOT is_active`
	}

	var total int64
	if err := cr.db.QueryRow(ctx, `SELECT COUNT(*) FROM coupons `+where, f.Search).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count coupons")
	}

	rows, err := cr.db.Query(ctx, `SELECT `+couponColumns+` FROM coupons `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		f.Search, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list coupons")
	}
	defer rows.Close()

	var out []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan coupon")
		}
		out = append(out, *c)
	}
	return out, total, errors.Wrap(rows.Err(), "list coupons")
}

func (cr *CouponRepo) DeactivateCoupon(ctx context.Context, id uuid.UUID) error {
	tag, err := cr.db.Exec(ctx, `UPDATE coupons SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deactivate coupon")
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrCouponNotFound
	}
	return nil
}

// HoldTx locks a coupon row and rejects a new PENDING checkout when settled
// uses plus open holds already reach the usage limit.
func HoldTx(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error {
	var limit *int64
	var count int64
	err := tx.QueryRow(ctx, `SELECT usage_limit, usage_count FROM coupons WHERE id = $1 AND is_active FOR UPDATE`, couponID).
		Scan(&limit, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrCouponNotFound
	}
	if err != nil {
		return errors.Wrap(err, "lock coupon")
	}
	if limit == nil {
		return nil
	}

	var holds int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE coupon_id = $1 AND status = 'PENDING'`, couponID).
		Scan(&holds); err != nil {
		return errors.Wrap(err, "count coupon holds")
	}
	if count+holds >= *limit {
		return apperror.ErrCouponExhausted
	}
	return nil
}

// ConsumeTx records one use of a coupon when its transaction settles.
func ConsumeTx(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE coupons SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, couponID)
	if err != nil {
		return errors.Wrap(err, "consume coupon")
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrCouponExhausted
	}
	return nil
}
