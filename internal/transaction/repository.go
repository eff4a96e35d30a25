package transaction

import (
	"context"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/coupon"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	SetPaymentDetails(ctx context.Context, id uuid.UUID, providerRef, paymentURL, method string) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	GetTransactionByInvoice(ctx context.Context, invoiceNumber string) (*model.Transaction, error)
	CompleteTransaction(ctx context.Context, s model.Settlement) (bool, error)
	FailTransaction(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	ListTransactions(ctx context.Context, f model.ListFilter) ([]model.Transaction, int64, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error)
}

type TransactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{
		db: db,
	}
}

const transactionColumns = `id, invoice_number, user_id, payer_email, amount, original_amount, discount_amount, status,
	type, payment_provider, payment_method, provider_ref, payment_url, coupon_id, affiliate_id, metadata,
	failure_reason, paid_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var meta []byte
	err := row.Scan(&t.ID, &t.InvoiceNumber, &t.UserID, &t.PayerEmail, &t.Amount, &t.OriginalAmount, &t.DiscountAmount,
		&t.Status, &t.Type, &t.PaymentProvider, &t.PaymentMethod, &t.ProviderRef, &t.PaymentURL, &t.CouponID,
		&t.AffiliateID, &meta, &t.FailureReason, &t.PaidAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrTransactionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan transaction")
	}
	if t.Metadata, err = model.DecodeMetadata(meta); err != nil {
		return nil, errors.Wrapf(err, "decode metadata of transaction %s", t.ID)
	}
	return &t, nil
}

// CreateTransaction inserts a PENDING transaction. A limited coupon is held in
// the same database transaction so concurrent checkouts cannot oversell it.
func (tr *TransactionRepo) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	meta, err := model.EncodeMetadata(txn.Metadata)
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}

	tx, err := tr.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin create transaction")
	}
	defer tx.Rollback(ctx)

	if txn.CouponID != nil {
		if err := coupon.HoldTx(ctx, tx, *txn.CouponID); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (id, invoice_number, user_id, payer_email, amount, original_amount, discount_amount,
			status, type, payment_provider, payment_method, coupon_id, affiliate_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, txn.ID, txn.InvoiceNumber, txn.UserID, txn.PayerEmail, txn.Amount, txn.OriginalAmount, txn.DiscountAmount,
		txn.Status, txn.Type, txn.PaymentProvider, txn.PaymentMethod, txn.CouponID, txn.AffiliateID, meta).
		Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert transaction")
	}
	return errors.Wrap(tx.Commit(ctx), "commit create transaction")
}

func (tr *TransactionRepo) SetPaymentDetails(ctx context.Context, id uuid.UUID, providerRef, paymentURL, method string) error {
	_, err := tr.db.Exec(ctx, `
		UPDATE transactions SET provider_ref = $2, payment_url = $3, payment_method = $4, updated_at = NOW()
		WHERE id = $1
	`, id, providerRef, paymentURL, method)
	return errors.Wrap(err, "set payment details")
}

func (tr *TransactionRepo) GetTransaction(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return scanTransaction(tr.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (tr *TransactionRepo) GetTransactionByInvoice(ctx context.Context, invoiceNumber string) (*model.Transaction, error) {
	return scanTransaction(tr.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE invoice_number = $1`, invoiceNumber))
}

// CompleteTransaction applies a settlement once. It reports false, writing
// nothing, when the transaction already left PENDING.
func (tr *TransactionRepo) CompleteTransaction(ctx context.Context, s model.Settlement) (bool, error) {
	tx, err := tr.db.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin settlement")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE transactions SET status = 'SUCCESS', paid_at = $2,
			payment_method = COALESCE(NULLIF($3, ''), payment_method),
			provider_ref = COALESCE(NULLIF($4, ''), provider_ref),
			updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, s.TransactionID, s.PaidAt, s.PaymentMethod, s.ProviderRef)
	if err != nil {
		return false, errors.Wrap(err, "mark transaction success")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if s.CouponID != nil {
		if err := coupon.ConsumeTx(ctx, tx, *s.CouponID); err != nil {
			return false, err
		}
	}
	for _, d := range s.Revenues {
		_, created, err := ledger.AppendTx(ctx, tx, d)
		if err != nil {
			return false, err
		}
		if created && d.Type == model.RevenueAffiliateCommission {
			_, err := tx.Exec(ctx, `
				UPDATE affiliate_profiles SET total_conversions = total_conversions + 1, updated_at = NOW()
				WHERE user_id = $1
			`, d.UserID)
			if err != nil {
				return false, errors.Wrap(err, "count conversion")
			}
		}
	}
	if err := outbox.EnqueueTx(ctx, tx, s.Events...); err != nil {
		return false, err
	}
	return true, errors.Wrap(tx.Commit(ctx), "commit settlement")
}

func (tr *TransactionRepo) FailTransaction(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := tr.db.Exec(ctx, `
		UPDATE transactions SET status = 'FAILED', failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, id, reason)
	if err != nil {
		return false, errors.Wrap(err, "mark transaction failed")
	}
	return tag.RowsAffected() > 0, nil
}

func (tr *TransactionRepo) ListTransactions(ctx context.Context, f model.ListFilter) ([]model.Transaction, int64, error) {
	where := `WHERE ($1 = '' OR status = $1) AND ($2::uuid IS NULL OR user_id = $2)
		AND ($3 = '' OR invoice_number ILIKE '%' || $3 || '%' OR payer_email ILIKE '%' || $3 || '%')`

	var total int64
	if err := tr.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions `+where, f.Status, f.UserID, f.Search).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count transactions")
	}

	rows, err := tr.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions `+where+
		` ORDER BY created_at DESC LIMIT $4 OFFSET $5`, f.Status, f.UserID, f.Search, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, errors.Wrap(err, "list transactions")
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, errors.Wrap(rows.Err(), "list transactions")
}

func (tr *TransactionRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := tr.db.Query(ctx, `
		SELECT id FROM transactions WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at LIMIT $2
	`, createdBefore, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list stale transactions")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	return ids, errors.Wrap(err, "collect stale transactions")
}
