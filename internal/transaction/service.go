package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/commission"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
)

// ProfileReader loads the affiliate a transaction is attributed to.
type ProfileReader interface {
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*model.AffiliateProfile, error)
}

type TransactionService struct {
	repo       TransactionRepository
	profiles   ProfileReader
	calculator *commission.Calculator
	now        func() time.Time
}

func NewTransactionService(repo TransactionRepository, profiles ProfileReader, calculator *commission.Calculator) *TransactionService {
	return &TransactionService{
		repo:       repo,
		profiles:   profiles,
		calculator: calculator,
		now:        time.Now,
	}
}

// HandlePaymentEvent applies a normalized provider callback. Replays are no-ops.
func (ts *TransactionService) HandlePaymentEvent(ctx context.Context, ev types.PaymentEvent) error {
	logger := middleware.GetLogger(ctx)

	txn, err := ts.repo.GetTransactionByInvoice(ctx, ev.InvoiceNumber)
	if err != nil {
		return err
	}

	switch ev.Status {
	case types.PaymentStatusPaid:
		if ev.Amount != 0 && ev.Amount != txn.Amount {
			logger.Error().
				Str("transaction_id", txn.ID.String()).
				Int64("expected", txn.Amount).
				Int64("paid", ev.Amount).
				Msg("paid amount does not match transaction")
			return apperror.ErrAmountMismatch
		}
		paidAt := ts.now()
		if ev.PaidAt != nil {
			paidAt = *ev.PaidAt
		}
		_, err := ts.Settle(ctx, txn, paidAt, ev.PaymentMethod, ev.ProviderRef)
		return err
	case types.PaymentStatusExpired, types.PaymentStatusFailed:
		_, err := ts.Fail(ctx, txn.ID, "payment "+ev.Status)
		return err
	default:
		logger.Warn().Str("status", ev.Status).Str("invoice", ev.InvoiceNumber).Msg("ignoring payment event")
		return nil
	}
}

// Settle moves a PENDING transaction to SUCCESS, consumes its coupon and
// appends the commission entries, all at once. It reports false when the
// transaction had already been settled.
func (ts *TransactionService) Settle(ctx context.Context, txn *model.Transaction, paidAt time.Time, method, providerRef string) (bool, error) {
	logger := middleware.GetLogger(ctx)

	if txn.Status != model.TransactionPending {
		logger.Info().Str("transaction_id", txn.ID.String()).Str("status", string(txn.Status)).Msg("transaction already final")
		return false, nil
	}

	settled := *txn
	settled.Status = model.TransactionSuccess

	var affiliate *model.AffiliateProfile
	if txn.AffiliateID != nil {
		p, err := ts.profiles.GetProfileByUser(ctx, *txn.AffiliateID)
		switch {
		case err == nil:
			affiliate = p
		case errors.Is(err, apperror.ErrAffiliateNotFound):
			logger.Warn().Str("affiliate_id", txn.AffiliateID.String()).Msg("attributed affiliate no longer exists")
		default:
			return false, err
		}
	}

	now := ts.now()
	drafts := ts.calculator.Drafts(&settled, affiliate, now)
	events := make([]model.OutboxEvent, 0, len(drafts))
	for _, d := range drafts {
		e, err := wallet.BalanceEvent(ctx, types.BalanceRevenuePending, d.UserID, uuid.Nil, d.TransactionID, d.Amount, now)
		if err != nil {
			return false, err
		}
		events = append(events, *e)
	}

	ok, err := ts.repo.CompleteTransaction(ctx, model.Settlement{
		TransactionID: txn.ID,
		PaidAt:        paidAt,
		PaymentMethod: method,
		ProviderRef:   providerRef,
		CouponID:      txn.CouponID,
		Revenues:      drafts,
		Events:        events,
	})
	if err != nil {
		logger.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("settlement failed")
		return false, err
	}
	if !ok {
		logger.Info().Str("transaction_id", txn.ID.String()).Msg("transaction settled concurrently")
		return false, nil
	}

	logger.Info().
		Str("transaction_id", txn.ID.String()).
		Int64("amount", txn.Amount).
		Int("ledger_entries", len(drafts)).
		Msg("transaction settled")
	return true, nil
}

// Confirm settles a transaction by hand, for payments made outside the gateway.
func (ts *TransactionService) Confirm(ctx context.Context, id, adminID uuid.UUID, req *types.ConfirmTransactionRequest) (*model.Transaction, error) {
	txn, err := ts.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != model.TransactionPending {
		return nil, apperror.ErrInvalidStateTransition.WithMessage("transaction is already " + string(txn.Status))
	}
	ok, err := ts.Settle(ctx, txn, ts.now(), req.PaymentMethod, req.ProviderRef)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrInvalidStateTransition.WithMessage("transaction was settled concurrently")
	}
	middleware.GetLogger(ctx).Info().Str("transaction_id", id.String()).Str("admin_id", adminID.String()).Msg("transaction confirmed manually")
	return ts.repo.GetTransaction(ctx, id)
}

func (ts *TransactionService) Fail(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	ok, err := ts.repo.FailTransaction(ctx, id, reason)
	if err != nil {
		return false, err
	}
	if ok {
		middleware.GetLogger(ctx).Info().Str("transaction_id", id.String()).Str("reason", reason).Msg("transaction failed")
	}
	return ok, nil
}

// ExpireStale fails PENDING transactions older than maxAge, releasing their coupon holds.
func (ts *TransactionService) ExpireStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	ids, err := ts.repo.ListStalePending(ctx, ts.now().Add(-maxAge), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		ok, err := ts.Fail(ctx, id, "payment window expired")
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (ts *TransactionService) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return ts.repo.GetTransaction(ctx, id)
}

func (ts *TransactionService) List(ctx context.Context, f model.ListFilter) ([]model.Transaction, int64, error) {
	return ts.repo.ListTransactions(ctx, f)
}
