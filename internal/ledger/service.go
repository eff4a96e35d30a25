package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
)

// Review is an admin decision on a pending entry. A nil ReviewerID means the
// entry matures by the hold-period policy.
type Review struct {
	ReviewerID     *uuid.UUID
	AdjustedAmount *int64
	Note           string
}

type LedgerService struct {
	repo LedgerRepository
	now  func() time.Time
}

func NewLedgerService(repo LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo, now: time.Now}
}

// Append records a commission event. Replaying the same (transaction, type)
// returns the stored entry without touching the wallet.
func (ls *LedgerService) Append(ctx context.Context, d model.RevenueDraft) (*model.PendingRevenue, error) {
	logger := middleware.GetLogger(ctx)

	if d.Amount < 0 {
		return nil, apperror.Validation("amount must not be negative")
	}
	if d.MatureAfter.IsZero() {
		d.MatureAfter = ls.now()
	}
	event, err := wallet.BalanceEvent(ctx, types.BalanceRevenuePending, d.UserID, uuid.Nil, d.TransactionID, d.Amount, ls.now())
	if err != nil {
		return nil, err
	}

	r, created, err := ls.repo.AppendPendingRevenue(ctx, d, event)
	if err != nil {
		logger.Error().Err(err).Str("transaction_id", d.TransactionID.String()).Msg("failed to append pending revenue")
		return nil, err
	}
	if !created {
		logger.Info().Str("transaction_id", d.TransactionID.String()).Str("type", string(d.Type)).Msg("pending revenue already recorded")
	}
	return r, nil
}

// Mature merges a PENDING entry into the wallet balance.
func (ls *LedgerService) Mature(ctx context.Context, id uuid.UUID, review Review) (*model.PendingRevenue, error) {
	now := ls.now()
	r, err := ls.repo.ReviewPendingRevenue(ctx, id, func(r *model.PendingRevenue, w *model.Wallet) (*model.LedgerEffect, error) {
		if r.Status != model.RevenuePending {
			return nil, apperror.ErrInvalidStateTransition.WithMessage(fmt.Sprintf("pending revenue is already %s", r.Status))
		}
		if review.AdjustedAmount != nil {
			if *review.AdjustedAmount < 0 || *review.AdjustedAmount > r.Amount {
				return nil, apperror.Validation("adjusted amount must be between 0 and the recorded amount")
			}
			r.AdjustedAmount = review.AdjustedAmount
		}
		if review.ReviewerID == nil {
			if now.Before(r.MatureAfter) {
				return nil, apperror.ErrInvalidStateTransition.WithMessage("pending revenue is still in its hold period")
			}
			r.Status = model.RevenueMatured
		} else {
			r.Status = model.RevenueApproved
			r.ReviewedBy = review.ReviewerID
			r.ReviewedAt = &now
		}
		if review.Note != "" {
			r.Note = review.Note
		}

		if w.PendingBalance < r.Amount {
			return nil, apperror.Internal(fmt.Errorf("wallet %s pending balance %d below entry amount %d", w.ID, w.PendingBalance, r.Amount))
		}
		credited := r.Credited()
		w.PendingBalance -= r.Amount
		w.Balance += credited
		w.TotalEarnings += credited

		event, err := wallet.BalanceEvent(ctx, types.BalanceRevenueCredited, w.UserID, w.ID, r.ID, credited, now)
		if err != nil {
			return nil, err
		}
		effect := &model.LedgerEffect{
			Entry: &model.WalletEntry{
				WalletID:    w.ID,
				Type:        model.EntryCredit,
				Amount:      credited,
				Reference:   r.ID,
				Description: fmt.Sprintf("%s for transaction %s", r.Type, r.TransactionID),
				CreatedAt:   now,
			},
			Event: event,
		}
		if r.Type == model.RevenueAffiliateCommission {
			effect.Earnings = credited
		}
		return effect, nil
	})
	if err != nil {
		return nil, err
	}

	middleware.GetLogger(ctx).Info().
		Str("pending_revenue_id", r.ID.String()).
		Str("status", string(r.Status)).
		Int64("credited", r.Credited()).
		Msg("pending revenue credited")
	return r, nil
}

func (ls *LedgerService) Approve(ctx context.Context, id, reviewerID uuid.UUID, adjusted *int64, note string) (*model.PendingRevenue, error) {
	return ls.Mature(ctx, id, Review{ReviewerID: &reviewerID, AdjustedAmount: adjusted, Note: note})
}

// Reject closes a PENDING entry without crediting it.
func (ls *LedgerService) Reject(ctx context.Context, id, reviewerID uuid.UUID, note string) (*model.PendingRevenue, error) {
	now := ls.now()
	r, err := ls.repo.ReviewPendingRevenue(ctx, id, func(r *model.PendingRevenue, w *model.Wallet) (*model.LedgerEffect, error) {
		if r.Status != model.RevenuePending {
			return nil, apperror.ErrInvalidStateTransition.WithMessage(fmt.Sprintf("pending revenue is already %s", r.Status))
		}
		if w.PendingBalance < r.Amount {
			return nil, apperror.Internal(fmt.Errorf("wallet %s pending balance %d below entry amount %d", w.ID, w.PendingBalance, r.Amount))
		}
		r.Status = model.RevenueRejected
		r.ReviewedBy = &reviewerID
		r.ReviewedAt = &now
		r.Note = note
		w.PendingBalance -= r.Amount

		event, err := wallet.BalanceEvent(ctx, types.BalanceRevenueRejected, w.UserID, w.ID, r.ID, r.Amount, now)
		if err != nil {
			return nil, err
		}
		return &model.LedgerEffect{Event: event}, nil
	})
	if err != nil {
		return nil, err
	}

	middleware.GetLogger(ctx).Info().Str("pending_revenue_id", r.ID.String()).Msg("pending revenue rejected")
	return r, nil
}

// MatureDue credits every entry whose hold period has passed. Entries an admin
// reviewed in the meantime are skipped.
func (ls *LedgerService) MatureDue(ctx context.Context, limit int) (int, error) {
	logger := middleware.GetLogger(ctx)

	ids, err := ls.repo.ListDueRevenueIDs(ctx, ls.now(), limit)
	if err != nil {
		return 0, err
	}

	matured := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return matured, err
		}
		_, err := ls.Mature(ctx, id, Review{})
		switch {
		case err == nil:
			matured++
		case errors.Is(err, apperror.ErrInvalidStateTransition):
			logger.Debug().Str("pending_revenue_id", id.String()).Msg("skipping reviewed entry")
		default:
			logger.Error().Err(err).Str("pending_revenue_id", id.String()).Msg("failed to mature entry")
		}
	}
	if matured > 0 {
		logger.Info().Int("matured", matured).Int("due", len(ids)).Msg("matured pending revenues")
	}
	return matured, nil
}

func (ls *LedgerService) Get(ctx context.Context, id uuid.UUID) (*model.PendingRevenue, error) {
	return ls.repo.GetPendingRevenue(ctx, id)
}

func (ls *LedgerService) List(ctx context.Context, f model.ListFilter) ([]model.PendingRevenue, int64, error) {
	return ls.repo.ListPendingRevenues(ctx, f)
}
