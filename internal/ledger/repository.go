package ledger

import (
	"context"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ReviewFunc mutates a locked entry and its wallet in memory. The repository
// persists both together with the returned effect.
type ReviewFunc func(r *model.PendingRevenue, w *model.Wallet) (*model.LedgerEffect, error)

type LedgerRepository interface {
	AppendPendingRevenue(ctx context.Context, d model.RevenueDraft, event *model.OutboxEvent) (*model.PendingRevenue, bool, error)
	ReviewPendingRevenue(ctx context.Context, id uuid.UUID, fn ReviewFunc) (*model.PendingRevenue, error)
	GetPendingRevenue(ctx context.Context, id uuid.UUID) (*model.PendingRevenue, error)
	ListPendingRevenues(ctx context.Context, f model.ListFilter) ([]model.PendingRevenue, int64, error)
	ListDueRevenueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type LedgerRepo struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{db: db}
}

const revenueColumns = `id, wallet_id, transaction_id, amount, adjusted_amount, type, percentage, status,
	note, reviewed_by, reviewed_at, mature_after, created_at, updated_at`

func scanRevenue(row pgx.Row) (*model.PendingRevenue, error) {
	var r model.PendingRevenue
	err := row.Scan(&r.ID, &r.WalletID, &r.TransactionID, &r.Amount, &r.AdjustedAmount, &r.Type, &r.Percentage, &r.Status,
		&r.Note, &r.ReviewedBy, &r.ReviewedAt, &r.MatureAfter, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrRevenueNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan pending revenue")
	}
	return &r, nil
}

// AppendTx writes a draft inside tx. A duplicate (transaction_id, type)
// returns the stored entry with created=false and leaves the wallet untouched.
func AppendTx(ctx context.Context, tx pgx.Tx, d model.RevenueDraft) (*model.PendingRevenue, bool, error) {
	w, err := wallet.EnsureTx(ctx, tx, d.UserID)
	if err != nil {
		return nil, false, err
	}

	r, err := scanRevenue(tx.QueryRow(ctx, `
		INSERT INTO pending_revenues (wallet_id, transaction_id, amount, type, percentage, status, mature_after)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
		ON CONFLICT (transaction_id, type) DO NOTHING
		RETURNING `+revenueColumns,
		w.ID, d.TransactionID, d.Amount, d.Type, d.Percentage, d.MatureAfter))
	if errors.Is(err, apperror.ErrRevenueNotFound) {
		existing, err := scanRevenue(tx.QueryRow(ctx,
			`SELECT `+revenueColumns+` FROM pending_revenues WHERE transaction_id = $1 AND type = $2`, d.TransactionID, d.Type))
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}

	w.PendingBalance += r.Amount
	if err := wallet.SaveTx(ctx, tx, w); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (lr *LedgerRepo) AppendPendingRevenue(ctx context.Context, d model.RevenueDraft, event *model.OutboxEvent) (*model.PendingRevenue, bool, error) {
	tx, err := lr.db.Begin(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "begin append")
	}
	defer tx.Rollback(ctx)

	r, created, err := AppendTx(ctx, tx, d)
	if err != nil {
		return nil, false, err
	}
	if created && event != nil {
		if err := outbox.EnqueueTx(ctx, tx, *event); err != nil {
			return nil, false, err
		}
	}
	return r, created, errors.Wrap(tx.Commit(ctx), "commit append")
}

func (lr *LedgerRepo) ReviewPendingRevenue(ctx context.Context, id uuid.UUID, fn ReviewFunc) (*model.PendingRevenue, error) {
	tx, err := lr.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin review")
	}
	defer tx.Rollback(ctx)

	r, err := scanRevenue(tx.QueryRow(ctx, `SELECT `+revenueColumns+` FROM pending_revenues WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	w, err := wallet.LockTx(ctx, tx, r.WalletID)
	if err != nil {
		return nil, err
	}

	effect, err := fn(r, w)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE pending_revenues SET status = $2, adjusted_amount = $3, note = $4, reviewed_by = $5,
			reviewed_at = $6, updated_at = NOW()
		WHERE id = $1
	`, r.ID, r.Status, r.AdjustedAmount, r.Note, r.ReviewedBy, r.ReviewedAt)
	if err != nil {
		return nil, errors.Wrap(err, "update pending revenue")
	}
	if err := wallet.SaveTx(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := wallet.ApplyEffectTx(ctx, tx, w, effect); err != nil {
		return nil, err
	}
	return r, errors.Wrap(tx.Commit(ctx), "commit review")
}

func (lr *LedgerRepo) GetPendingRevenue(ctx context.Context, id uuid.UUID) (*model.PendingRevenue, error) {
	return scanRevenue(lr.db.QueryRow(ctx, `SELECT `+revenueColumns+` FROM pending_revenues WHERE id = $1`, id))
}

func (lr *LedgerRepo) ListPendingRevenues(ctx context.Context, f model.ListFilter) ([]model.PendingRevenue, int64, error) {
	where := `WHERE ($1 = '' OR r.status = $1) AND ($2::uuid IS NULL OR w.user_id = $2)`

	var total int64
	err := lr.db.QueryRow(ctx, `SELECT COUNT(*) FROM pending_revenues r JOIN wallets w ON w.id = r.wallet_id `+where,
		f.Status, f.UserID).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count pending revenues")
	}

	rows, err := lr.db.Query(ctx, `
		SELECT r.id, r.wallet_id, r.transaction_id, r.amount, r.adjusted_amount, r.type, r.percentage, r.status,
			r.note, r.reviewed_by, r.reviewed_at, r.mature_after, r.created_at, r.updated_at
		FROM pending_revenues r JOIN wallets w ON w.id = r.wallet_id `+where+`
		ORDER BY r.created_at DESC LIMIT $3 OFFSET $4
	`, f.Status, f.UserID, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list pending revenues")
	}
	defer rows.Close()

	var out []model.PendingRevenue
	for rows.Next() {
		r, err := scanRevenue(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, errors.Wrap(rows.Err(), "list pending revenues")
}

func (lr *LedgerRepo) ListDueRevenueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := lr.db.Query(ctx, `
		SELECT id FROM pending_revenues
		WHERE status = 'PENDING' AND mature_after <= $1
		ORDER BY mature_after LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list due revenues")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	return ids, errors.Wrap(err, "collect due revenues")
}
