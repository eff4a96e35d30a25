package payout

import (
	"context"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// CreateFunc builds a payout against a locked wallet. earmarked is the sum of
// the wallet's PENDING payouts.
type CreateFunc func(w *model.Wallet, earmarked int64) (*model.Payout, *model.OutboxEvent, error)

// TransitionFunc moves a locked payout to its next state and adjusts the wallet.
type TransitionFunc func(p *model.Payout, w *model.Wallet) (*model.LedgerEffect, error)

type PayoutRepository interface {
	CreatePayout(ctx context.Context, userID uuid.UUID, fn CreateFunc) (*model.Payout, error)
	TransitionPayout(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*model.Payout, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*model.Payout, error)
	ListPayouts(ctx context.Context, f model.ListFilter) ([]model.Payout, int64, error)
}

type PayoutRepo struct {
	db *pgxpool.Pool
}

func NewPayoutRepository(db *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{db: db}
}

const payoutColumns = `id, user_id, wallet_id, amount, admin_fee, net_amount, status, bank_name, bank_account_name,
	bank_account_number, notes, rejection_reason, approved_by, approved_at, paid_at, created_at, updated_at`

func scanPayout(row pgx.Row) (*model.Payout, error) {
	var p model.Payout
	err := row.Scan(&p.ID, &p.UserID, &p.WalletID, &p.Amount, &p.AdminFee, &p.NetAmount, &p.Status, &p.Bank.BankName,
		&p.Bank.AccountName, &p.Bank.AccountNumber, &p.Notes, &p.RejectionReason, &p.ApprovedBy, &p.ApprovedAt,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrPayoutNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan payout")
	}
	return &p, nil
}

func (pr *PayoutRepo) CreatePayout(ctx context.Context, userID uuid.UUID, fn CreateFunc) (*model.Payout, error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin payout request")
	}
	defer tx.Rollback(ctx)

	w, err := wallet.LockByUserTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	var earmarked int64
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payouts WHERE wallet_id = $1 AND status = 'PENDING'`, w.ID).
		Scan(&earmarked)
	if err != nil {
		return nil, errors.Wrap(err, "sum pending payouts")
	}

	p, event, err := fn(w, earmarked)
	if err != nil {
		return nil, err
	}

	created, err := scanPayout(tx.QueryRow(ctx, `
		INSERT INTO payouts (id, user_id, wallet_id, amount, admin_fee, net_amount, status, bank_name,
			bank_account_name, bank_account_number, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+payoutColumns,
		p.ID, p.UserID, w.ID, p.Amount, p.AdminFee, p.NetAmount, p.Status, p.Bank.BankName,
		p.Bank.AccountName, p.Bank.AccountNumber, p.Notes))
	if err != nil {
		return nil, err
	}
	if event != nil {
		if err := outbox.EnqueueTx(ctx, tx, *event); err != nil {
			return nil, err
		}
	}
	return created, errors.Wrap(tx.Commit(ctx), "commit payout request")
}

func (pr *PayoutRepo) TransitionPayout(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*model.Payout, error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin payout transition")
	}
	defer tx.Rollback(ctx)

	// wallet first, then payout: the same order CreatePayout locks in
	var walletID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT wallet_id FROM payouts WHERE id = $1`, id).Scan(&walletID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrPayoutNotFound
		}
		return nil, errors.Wrap(err, "find payout wallet")
	}
	w, err := wallet.LockTx(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	p, err := scanPayout(tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	effect, err := fn(p, w)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE payouts SET status = $2, rejection_reason = $3, approved_by = $4, approved_at = $5,
			paid_at = $6, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Status, p.RejectionReason, p.ApprovedBy, p.ApprovedAt, p.PaidAt)
	if err != nil {
		return nil, errors.Wrap(err, "update payout")
	}
	if err := wallet.SaveTx(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := wallet.ApplyEffectTx(ctx, tx, w, effect); err != nil {
		return nil, err
	}
	return p, errors.Wrap(tx.Commit(ctx), "commit payout transition")
}

func (pr *PayoutRepo) GetPayout(ctx context.Context, id uuid.UUID) (*model.Payout, error) {
	return scanPayout(pr.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
}

func (pr *PayoutRepo) ListPayouts(ctx context.Context, f model.ListFilter) ([]model.Payout, int64, error) {
	where := `WHERE ($1 = '' OR status = $1) AND ($2::uuid IS NULL OR user_id = $2)`

	var total int64
	if err := pr.db.QueryRow(ctx, `SELECT COUNT(*) FROM payouts `+where, f.Status, f.UserID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count payouts")
	}

	rows, err := pr.db.Query(ctx, `SELECT `+payoutColumns+` FROM payouts `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		f.Status, f.UserID, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list payouts")
	}
	defer rows.Close()

	var out []model.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, errors.Wrap(rows.Err(), "list payouts")
}
