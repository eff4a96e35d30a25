package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
)

type WalletService struct {
	walletRepo WalletRepository
}

func NewWalletService(walletRepo WalletRepository) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
	}
}

// GetWallet returns the user's wallet, or an empty one when nothing was ever credited.
func (ws *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	w, err := ws.walletRepo.GetWalletByUser(ctx, userID)
	if errors.Is(err, apperror.ErrWalletNotFound) {
		return &model.Wallet{UserID: userID}, nil
	}
	return w, err
}

func (ws *WalletService) EnsureWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	return ws.walletRepo.EnsureWallet(ctx, userID)
}

func (ws *WalletService) PayoutTotals(ctx context.Context, w *model.Wallet) (model.PayoutTotals, error) {
	if w.ID == uuid.Nil {
		return model.PayoutTotals{}, nil
	}
	return ws.walletRepo.PayoutTotals(ctx, w.ID)
}

func (ws *WalletService) ListEntries(ctx context.Context, userID uuid.UUID, f model.ListFilter) ([]model.WalletEntry, int64, error) {
	w, err := ws.walletRepo.GetWalletByUser(ctx, userID)
	if errors.Is(err, apperror.ErrWalletNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return ws.walletRepo.ListWalletEntries(ctx, w.ID, f)
}

// Report compares the cached wallet buckets with what the ledger rows imply.
type Report struct {
	UserID   uuid.UUID           `json:"user_id"`
	Wallet   model.Wallet        `json:"wallet"`
	Revenue  model.RevenueTotals `json:"revenue"`
	Payouts  model.PayoutTotals  `json:"payouts"`
	Expected model.Wallet        `json:"expected"`
	Balanced bool                `json:"balanced"`
	Issues   []string            `json:"issues,omitempty"`
}

// Reconcile checks
//
//	balance        == credited revenue - approved and paid payouts
//	locked_balance == approved payouts
//	total_payout   == paid payouts
//	pending        == pending revenue
func (ws *WalletService) Reconcile(ctx context.Context, userID uuid.UUID) (*Report, error) {
	logger := middleware.GetLogger(ctx)

	w, err := ws.walletRepo.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rev, err := ws.walletRepo.RevenueTotals(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	pay, err := ws.walletRepo.PayoutTotals(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	r := Check(*w, rev, pay)
	if !r.Balanced {
		logger.Warn().Str("user_id", userID.String()).Strs("issues", r.Issues).Msg("wallet out of balance")
	}
	return r, nil
}

// Check is the pure part of Reconcile.
func Check(w model.Wallet, rev model.RevenueTotals, pay model.PayoutTotals) *Report {
	expected := model.Wallet{
		ID:             w.ID,
		UserID:         w.UserID,
		Balance:        rev.Credited - pay.Approved - pay.Paid,
		LockedBalance:  pay.Approved,
		PendingBalance: rev.Pending,
		TotalEarnings:  rev.Credited,
		TotalPayout:    pay.Paid,
	}
	r := &Report{UserID: w.UserID, Wallet: w, Revenue: rev, Payouts: pay, Expected: expected}
	mismatch := func(name string, got, want int64) {
		if got != want {
			r.Issues = append(r.Issues, name)
		}
	}
	mismatch("balance", w.Balance, expected.Balance)
	mismatch("locked_balance", w.LockedBalance, expected.LockedBalance)
	mismatch("pending_balance", w.PendingBalance, expected.PendingBalance)
	mismatch("total_earnings", w.TotalEarnings, expected.TotalEarnings)
	mismatch("total_payout", w.TotalPayout, expected.TotalPayout)
	r.Balanced = len(r.Issues) == 0
	return r
}

// BalanceEvent builds the outbox event the balance worker turns into a notification.
func BalanceEvent(ctx context.Context, kind string, userID, walletID, reference uuid.UUID, amount int64, at time.Time) (*model.OutboxEvent, error) {
	e, err := outbox.NewEvent(kafka.EventBalanceUpdated, userID.String(), middleware.GetRequestIDFromContext(ctx), types.BalanceUpdateEvent{
		Kind:      kind,
		UserID:    userID.String(),
		WalletID:  walletID.String(),
		Reference: reference.String(),
		Amount:    amount,
		Currency:  constants.Currency,
		At:        at,
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}
