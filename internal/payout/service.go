package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const lockWait = 5 * time.Second

// ProfileReader supplies the bank details and PIN a payout request is checked against.
type ProfileReader interface {
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*model.AffiliateProfile, error)
}

type Settings struct {
	MinPayout   int64
	AdminFee    int64
	PinRequired bool
	LockTTL     time.Duration
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MinPayout:   cfg.Ledger.MinPayout,
		AdminFee:    cfg.Ledger.PayoutAdminFee,
		PinRequired: cfg.Ledger.PinRequired,
		LockTTL:     cfg.Redis.LockTTL,
	}
}

type PayoutService struct {
	repo     PayoutRepository
	profiles ProfileReader
	redis    *redis.Client
	settings Settings
	now      func() time.Time
}

func NewPayoutService(repo PayoutRepository, profiles ProfileReader, redis *redis.Client, settings Settings) *PayoutService {
	return &PayoutService{
		repo:     repo,
		profiles: profiles,
		redis:    redis,
		settings: settings,
		now:      time.Now,
	}
}

// Request creates a PENDING payout. Nothing moves in the wallet until approval,
// but the amount counts against the available balance of later requests.
func (ps *PayoutService) Request(ctx context.Context, userID uuid.UUID, amount int64, notes, pin string) (*model.Payout, error) {
	logger := middleware.GetLogger(ctx)

	profile, err := ps.profiles.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.Bank.Configured() {
		return nil, apperror.ErrNoBankAccount
	}
	if amount < ps.settings.MinPayout {
		return nil, apperror.ErrBelowMinimumPayout.WithMessage(fmt.Sprintf("minimum payout is Rp %d", ps.settings.MinPayout))
	}
	if err := ps.checkPin(profile, pin); err != nil {
		return nil, err
	}

	lock, err := ps.redis.AcquireLockWait(ctx, "wallet:"+userID.String(), ps.settings.LockTTL, lockWait)
	if errors.Is(err, redis.ErrLockHeld) {
		return nil, apperror.ErrRequestInProgress
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to release wallet lock")
		}
	}()

	now := ps.now()
	p, err := ps.repo.CreatePayout(ctx, userID, func(w *model.Wallet, earmarked int64) (*model.Payout, *model.OutboxEvent, error) {
		available := w.Balance - earmarked
		if amount > available {
			return nil, nil, apperror.ErrInsufficientBalance.WithMessage(fmt.Sprintf("available balance is Rp %d", max(available, 0)))
		}
		p := &model.Payout{
			ID:        uuid.New(),
			UserID:    userID,
			WalletID:  w.ID,
			Amount:    amount,
			AdminFee:  ps.settings.AdminFee,
			NetAmount: amount - ps.settings.AdminFee,
			Status:    model.PayoutPending,
			Bank:      profile.Bank,
			Notes:     notes,
		}
		event, err := wallet.BalanceEvent(ctx, types.BalancePayoutRequested, userID, w.ID, p.ID, amount, now)
		return p, event, err
	})
	if errors.Is(err, apperror.ErrWalletNotFound) {
		return nil, apperror.ErrInsufficientBalance.WithMessage("available balance is Rp 0")
	}
	if err != nil {
		return nil, err
	}

	logger.Info().Str("payout_id", p.ID.String()).Str("user_id", userID.String()).Int64("amount", amount).Msg("payout requested")
	return p, nil
}

func (ps *PayoutService) checkPin(profile *model.AffiliateProfile, pin string) error {
	if profile.PinHash == "" {
		if ps.settings.PinRequired {
			return apperror.ErrPinRequired
		}
		return nil
	}
	if pin == "" || bcrypt.CompareHashAndPassword([]byte(profile.PinHash), []byte(pin)) != nil {
		return apperror.ErrInvalidPin
	}
	return nil
}

// Approve earmarks the amount: balance -> locked_balance.
func (ps *PayoutService) Approve(ctx context.Context, id, adminID uuid.UUID) (*model.Payout, error) {
	now := ps.now()
	p, err := ps.repo.TransitionPayout(ctx, id, func(p *model.Payout, w *model.Wallet) (*model.LedgerEffect, error) {
		if p.Status != model.PayoutPending {
			return nil, invalidTransition(p.Status, model.PayoutApproved)
		}
		if w.Balance < p.Amount {
			return nil, apperror.ErrInsufficientBalance.WithMessage(fmt.Sprintf("wallet balance Rp %d no longer covers the payout", w.Balance))
		}
		w.Balance -= p.Amount
		w.LockedBalance += p.Amount
		p.Status = model.PayoutApproved
		p.ApprovedBy = &adminID
		p.ApprovedAt = &now
		return ps.effect(ctx, p, w, model.EntryPayoutHold, types.BalancePayoutApproved, now)
	})
	if err != nil {
		return nil, err
	}
	middleware.GetLogger(ctx).Info().Str("payout_id", id.String()).Str("admin_id", adminID.String()).Msg("payout approved")
	return p, nil
}

// MarkPaid settles an approved payout: locked_balance -> total_payout.
func (ps *PayoutService) MarkPaid(ctx context.Context, id, adminID uuid.UUID) (*model.Payout, error) {
	now := ps.now()
	p, err := ps.repo.TransitionPayout(ctx, id, func(p *model.Payout, w *model.Wallet) (*model.LedgerEffect, error) {
		if p.Status != model.PayoutApproved {
			return nil, invalidTransition(p.Status, model.PayoutPaid)
		}
		if w.LockedBalance < p.Amount {
			return nil, apperror.Internal(fmt.Errorf("wallet %s locked balance %d below payout %d", w.ID, w.LockedBalance, p.Amount))
		}
		w.LockedBalance -= p.Amount
		w.TotalPayout += p.Amount
		p.Status = model.PayoutPaid
		p.PaidAt = &now
		return ps.effect(ctx, p, w, model.EntryPayout, types.BalancePayoutPaid, now)
	})
	if err != nil {
		return nil, err
	}
	middleware.GetLogger(ctx).Info().Str("payout_id", id.String()).Str("admin_id", adminID.String()).Msg("payout marked paid")
	return p, nil
}

// Reject closes a PENDING payout. The wallet was never touched.
func (ps *PayoutService) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*model.Payout, error) {
	now := ps.now()
	p, err := ps.repo.TransitionPayout(ctx, id, func(p *model.Payout, w *model.Wallet) (*model.LedgerEffect, error) {
		if p.Status != model.PayoutPending {
			return nil, invalidTransition(p.Status, model.PayoutRejected)
		}
		p.Status = model.PayoutRejected
		p.RejectionReason = reason
		p.ApprovedBy = &adminID
		p.ApprovedAt = &now
		event, err := wallet.BalanceEvent(ctx, types.BalancePayoutRejected, w.UserID, w.ID, p.ID, p.Amount, now)
		if err != nil {
			return nil, err
		}
		return &model.LedgerEffect{Event: event}, nil
	})
	if err != nil {
		return nil, err
	}
	middleware.GetLogger(ctx).Info().Str("payout_id", id.String()).Str("reason", reason).Msg("payout rejected")
	return p, nil
}

func (ps *PayoutService) effect(ctx context.Context, p *model.Payout, w *model.Wallet, entry model.WalletEntryType, kind string, now time.Time) (*model.LedgerEffect, error) {
	event, err := wallet.BalanceEvent(ctx, kind, w.UserID, w.ID, p.ID, p.Amount, now)
	if err != nil {
		return nil, err
	}
	return &model.LedgerEffect{
		Entry: &model.WalletEntry{
			WalletID:    w.ID,
			Type:        entry,
			Amount:      p.Amount,
			Reference:   p.ID,
			Description: fmt.Sprintf("payout to %s %s", p.Bank.BankName, p.Bank.AccountNumber),
			CreatedAt:   now,
		},
		Event: event,
	}, nil
}

func invalidTransition(from, to model.PayoutStatus) error {
	return apperror.ErrInvalidStateTransition.WithMessage(fmt.Sprintf("cannot move payout from %s to %s", from, to))
}

func (ps *PayoutService) Get(ctx context.Context, id uuid.UUID) (*model.Payout, error) {
	return ps.repo.GetPayout(ctx, id)
}

func (ps *PayoutService) List(ctx context.Context, f model.ListFilter) ([]model.Payout, int64, error) {
	return ps.repo.ListPayouts(ctx, f)
}
