package wallet

import (
	"context"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type WalletRepository interface {
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)
	RevenueTotals(ctx context.Context, walletID uuid.UUID) (model.RevenueTotals, error)
	PayoutTotals(ctx context.Context, walletID uuid.UUID) (model.PayoutTotals, error)
	ListWalletEntries(ctx context.Context, walletID uuid.UUID, f model.ListFilter) ([]model.WalletEntry, int64, error)
}

type WalletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{db: db}
}

const walletColumns = `id, user_id, balance, locked_balance, pending_balance, total_earnings, total_payout, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.LockedBalance, &w.PendingBalance,
		&w.TotalEarnings, &w.TotalPayout, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrWalletNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan wallet")
	}
	return &w, nil
}

func (wr *WalletRepo) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	return scanWallet(wr.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
}

func (wr *WalletRepo) EnsureWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	if _, err := wr.db.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, errors.Wrap(err, "create wallet")
	}
	return wr.GetWalletByUser(ctx, userID)
}

func (wr *WalletRepo) RevenueTotals(ctx context.Context, walletID uuid.UUID) (model.RevenueTotals, error) {
	var t model.RevenueTotals
	err := wr.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'PENDING'), 0),
			COALESCE(SUM(COALESCE(adjusted_amount, amount)) FILTER (WHERE status IN ('APPROVED', 'MATURED')), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'REJECTED'), 0)
		FROM pending_revenues WHERE wallet_id = $1
	`, walletID).Scan(&t.Pending, &t.Credited, &t.Rejected)
	return t, errors.Wrap(err, "sum pending revenues")
}

func (wr *WalletRepo) PayoutTotals(ctx context.Context, walletID uuid.UUID) (model.PayoutTotals, error) {
	var t model.PayoutTotals
	err := wr.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'PENDING'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'APPROVED'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'PAID'), 0)
		FROM payouts WHERE wallet_id = $1
	`, walletID).Scan(&t.Pending, &t.Approved, &t.Paid)
	return t, errors.Wrap(err, "sum payouts")
}

func (wr *WalletRepo) ListWalletEntries(ctx context.Context, walletID uuid.UUID, f model.ListFilter) ([]model.WalletEntry, int64, error) {
	var total int64
	if err := wr.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count wallet entries")
	}
	rows, err := wr.db.Query(ctx, `
		SELECT id, wallet_id, type, amount, reference, description, created_at
		FROM wallet_transactions WHERE wallet_id = $1
		ORDER BY id DESC LIMIT $2 OFFSET $3
	`, walletID, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list wallet entries")
	}
	defer rows.Close()

	var out []model.WalletEntry
	for rows.Next() {
		var e model.WalletEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Type, &e.Amount, &e.Reference, &e.Description, &e.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "scan wallet entry")
		}
		out = append(out, e)
	}
	return out, total, errors.Wrap(rows.Err(), "list wallet entries")
}

// EnsureTx creates the user's wallet if needed and locks it for the rest of tx.
func EnsureTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*model.Wallet, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, errors.Wrap(err, "create wallet")
	}
	return LockByUserTx(ctx, tx, userID)
}

func LockByUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*model.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
}

func LockTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*model.Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID))
}

// SaveTx writes every bucket of a wallet locked earlier in tx.
func SaveTx(ctx context.Context, tx pgx.Tx, w *model.Wallet) error {
	_, err := tx.Exec(ctx, `
		UPDATE wallets SET balance = $2, locked_balance = $3, pending_balance = $4,
			total_earnings = $5, total_payout = $6, updated_at = NOW()
		WHERE id = $1
	`, w.ID, w.Balance, w.LockedBalance, w.PendingBalance, w.TotalEarnings, w.TotalPayout)
	return errors.Wrap(err, "update wallet")
}

// ApplyEffectTx records the audit row, outbox event and profile earnings of a wallet mutation.
func ApplyEffectTx(ctx context.Context, tx pgx.Tx, w *model.Wallet, effect *model.LedgerEffect) error {
	if effect == nil {
		return nil
	}
	if e := effect.Entry; e != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO wallet_transactions (wallet_id, type, amount, reference, description)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (wallet_id, type, reference) DO NOTHING
		`, w.ID, e.Type, e.Amount, e.Reference, e.Description)
		if err != nil {
			return errors.Wrap(err, "insert wallet entry")
		}
	}
	if effect.Event != nil {
		if err := outbox.EnqueueTx(ctx, tx, *effect.Event); err != nil {
			return err
		}
	}
	if effect.Earnings != 0 {
		_, err := tx.Exec(ctx, `
			UPDATE affiliate_profiles SET total_earnings = total_earnings + $2, updated_at = NOW()
			WHERE user_id = $1
		`, w.UserID, effect.Earnings)
		if err != nil {
			return errors.Wrap(err, "update affiliate earnings")
		}
	}
	return nil
}
