package affiliate

import (
	"context"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type AffiliateRepository interface {
	CreateProfile(ctx context.Context, p *model.AffiliateProfile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*model.AffiliateProfile, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*model.AffiliateProfile, error)
	GetProfileByCode(ctx context.Context, code string) (*model.AffiliateProfile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fn func(p *model.AffiliateProfile) error) (*model.AffiliateProfile, error)
	ListProfiles(ctx context.Context, f model.ListFilter) ([]model.AffiliateProfile, int64, error)

	CreateLink(ctx context.Context, l *model.AffiliateLink) error
	ListLinks(ctx context.Context, affiliateUserID uuid.UUID) ([]model.AffiliateLink, error)
	GetLinkByCode(ctx context.Context, code string) (*model.AffiliateLink, error)
	RecordClick(ctx context.Context, linkID uuid.UUID) error
}

type AffiliateRepo struct {
	db *pgxpool.Pool
}

func NewAffiliateRepository(db *pgxpool.Pool) *AffiliateRepo {
	return &AffiliateRepo{db: db}
}

const profileColumns = `id, user_id, affiliate_code, short_link, commission_rate, status, is_active, motivation,
	rejection_reason, bank_name, bank_account_name, bank_account_number, pin_hash, total_earnings,
	total_conversions, applied_at, reviewed_at, reviewed_by, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.AffiliateProfile, error) {
	var p model.AffiliateProfile
	err := row.Scan(&p.ID, &p.UserID, &p.AffiliateCode, &p.ShortLink, &p.CommissionRate, &p.Status, &p.IsActive,
		&p.Motivation, &p.RejectionReason, &p.Bank.BankName, &p.Bank.AccountName, &p.Bank.AccountNumber, &p.PinHash,
		&p.TotalEarnings, &p.TotalConversions, &p.AppliedAt, &p.ReviewedAt, &p.ReviewedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrAffiliateNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan affiliate profile")
	}
	return &p, nil
}

func (ar *AffiliateRepo) CreateProfile(ctx context.Context, p *model.AffiliateProfile) error {
	err := ar.db.QueryRow(ctx, `
		INSERT INTO affiliate_profiles (id, user_id, affiliate_code, short_link, status, is_active, motivation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING applied_at, created_at, updated_at
	`, p.ID, p.UserID, p.AffiliateCode, p.ShortLink, p.Status, p.IsActive, p.Motivation).
		Scan(&p.AppliedAt, &p.CreatedAt, &p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "affiliate_profiles_user_id_key" {
			return apperror.ErrApplicationExists
		}
		return apperror.ErrAffiliateCodeTaken
	}
	return errors.Wrap(err, "create affiliate profile")
}

func (ar *AffiliateRepo) GetProfile(ctx context.Context, id uuid.UUID) (*model.AffiliateProfile, error) {
	return scanProfile(ar.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM affiliate_profiles WHERE id = $1`, id))
}

func (ar *AffiliateRepo) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*model.AffiliateProfile, error) {
	return scanProfile(ar.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM affiliate_profiles WHERE user_id = $1`, userID))
}

func (ar *AffiliateRepo) GetProfileByCode(ctx context.Context, code string) (*model.AffiliateProfile, error) {
	return scanProfile(ar.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM affiliate_profiles WHERE affiliate_code = LOWER($1)`, code))
}

func (ar *AffiliateRepo) UpdateProfile(ctx context.Context, id uuid.UUID, fn func(p *model.AffiliateProfile) error) (*model.AffiliateProfile, error) {
	tx, err := ar.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin profile update")
	}
	defer tx.Rollback(ctx)

	p, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM affiliate_profiles WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE affiliate_profiles SET commission_rate = $2, status = $3, is_active = $4, motivation = $5,
			rejection_reason = $6, bank_name = $7, bank_account_name = $8, bank_account_number = $9,
			pin_hash = $10, applied_at = $11, reviewed_at = $12, reviewed_by = $13, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.CommissionRate, p.Status, p.IsActive, p.Motivation, p.RejectionReason, p.Bank.BankName,
		p.Bank.AccountName, p.Bank.AccountNumber, p.PinHash, p.AppliedAt, p.ReviewedAt, p.ReviewedBy)
	if err != nil {
		return nil, errors.Wrap(err, "update affiliate profile")
	}
	return p, errors.Wrap(tx.Commit(ctx), "commit profile update")
}

func (ar *AffiliateRepo) ListProfiles(ctx context.Context, f model.ListFilter) ([]model.AffiliateProfile, int64, error) {
	where := `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR affiliate_code ILIKE '%' || $2 || '%')`

	var total int64
	if err := ar.db.QueryRow(ctx, `SELECT COUNT(*) FROM affiliate_profiles `+where, f.Status, f.Search).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count affiliate profiles")
	}

	rows, err := ar.db.Query(ctx, `SELECT `+profileColumns+` FROM affiliate_profiles `+where+
		` ORDER BY applied_at DESC LIMIT $3 OFFSET $4`, f.Status, f.Search, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list affiliate profiles")
	}
	defer rows.Close()

	var out []model.AffiliateProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, errors.Wrap(rows.Err(), "list affiliate profiles")
}

const linkColumns = `id, affiliate_id, code, target_type, target_id, target_url, clicks, created_at, updated_at`

func scanLink(row pgx.Row) (*model.AffiliateLink, error) {
	var l model.AffiliateLink
	err := row.Scan(&l.ID, &l.AffiliateID, &l.Code, &l.TargetType, &l.TargetID, &l.TargetURL, &l.Clicks, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrLinkNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan affiliate link")
	}
	return &l, nil
}

func (ar *AffiliateRepo) CreateLink(ctx context.Context, l *model.AffiliateLink) error {
	err := ar.db.QueryRow(ctx, `
		INSERT INTO affiliate_links (id, affiliate_id, code, target_type, target_id, target_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING clicks, created_at, updated_at
	`, l.ID, l.AffiliateID, l.Code, l.TargetType, l.TargetID, l.TargetURL).Scan(&l.Clicks, &l.CreatedAt, &l.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.ErrAffiliateCodeTaken
	}
	return errors.Wrap(err, "create affiliate link")
}

func (ar *AffiliateRepo) ListLinks(ctx context.Context, affiliateUserID uuid.UUID) ([]model.AffiliateLink, error) {
	rows, err := ar.db.Query(ctx, `SELECT `+linkColumns+` FROM affiliate_links WHERE affiliate_id = $1 ORDER BY created_at DESC`, affiliateUserID)
	if err != nil {
		return nil, errors.Wrap(err, "list affiliate links")
	}
	defer rows.Close()

	var out []model.AffiliateLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, errors.Wrap(rows.Err(), "list affiliate links")
}

func (ar *AffiliateRepo) GetLinkByCode(ctx context.Context, code string) (*model.AffiliateLink, error) {
	return scanLink(ar.db.QueryRow(ctx, `SELECT `+linkColumns+` FROM affiliate_links WHERE code = LOWER($1)`, code))
}

func (ar *AffiliateRepo) RecordClick(ctx context.Context, linkID uuid.UUID) error {
	_, err := ar.db.Exec(ctx, `UPDATE affiliate_links SET clicks = clicks + 1, updated_at = NOW() WHERE id = $1`, linkID)
	return errors.Wrap(err, "record link click")
}
