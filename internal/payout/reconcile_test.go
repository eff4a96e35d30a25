package payout_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// refusals are business rules turning a step down. Anything else is a fault.
var refusals = []error{
	apperror.ErrInsufficientBalance,
	apperror.ErrInvalidStateTransition,
	apperror.ErrRevenueNotFound,
	apperror.ErrPayoutNotFound,
}

func refused(err error) bool {
	for _, r := range refusals {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

func TestWalletStaysReconciledUnderRandomOperations(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(seed, seed*7919))
			f := newFixture(t, defaultSettings, 100000)
			ls := ledger.NewLedgerService(f.store)

			var revenues, payouts []uuid.UUID
			pick := func(ids []uuid.UUID) uuid.UUID {
				if len(ids) == 0 {
					return uuid.New()
				}
				return ids[rng.IntN(len(ids))]
			}

			for step := range 200 {
				var op string
				var err error
				switch rng.IntN(9) {
				case 0, 1:
					op = "append"
					matureAfter := time.Now().Add(time.Hour)
					if rng.IntN(2) == 0 {
						matureAfter = time.Now().Add(-time.Minute)
					}
					var r *model.PendingRevenue
					r, err = ls.Append(ctx, model.RevenueDraft{
						UserID:        f.user,
						TransactionID: uuid.New(),
						Amount:        int64(10000 + rng.IntN(20)*10000),
						Type:          model.RevenueAffiliateCommission,
						Percentage:    decimal.NewFromInt(10),
						MatureAfter:   matureAfter,
					})
					if err == nil {
						revenues = append(revenues, r.ID)
					}
				case 2:
					op = "mature-due"
					_, err = ls.MatureDue(ctx, 10)
				case 3:
					op = "approve-revenue"
					var adjusted *int64
					if rng.IntN(3) == 0 {
						adjusted = new(int64)
						*adjusted = 5000
					}
					_, err = ls.Approve(ctx, pick(revenues), f.admin, adjusted, "")
				case 4:
					op = "reject-revenue"
					_, err = ls.Reject(ctx, pick(revenues), f.admin, "refund")
				case 5, 6:
					op = "request-payout"
					var p *model.Payout
					p, err = f.svc.Request(ctx, f.user, int64(50000+rng.IntN(10)*25000), "", "")
					if err == nil {
						payouts = append(payouts, p.ID)
					}
				case 7:
					op = "approve-payout"
					_, err = f.svc.Approve(ctx, pick(payouts), f.admin)
				default:
					if rng.IntN(2) == 0 {
						op = "pay-payout"
						_, err = f.svc.MarkPaid(ctx, pick(payouts), f.admin)
					} else {
						op = "reject-payout"
						_, err = f.svc.Reject(ctx, pick(payouts), f.admin, "wrong account")
					}
				}
				if refused(err) {
					err = nil
				}
				require.NoError(t, err, "step %d %s", step, op)

				w := f.wallet(t)
				require.GreaterOrEqual(t, w.Balance, int64(0), "step %d %s", step, op)
				require.GreaterOrEqual(t, w.LockedBalance, int64(0), "step %d %s", step, op)
				require.GreaterOrEqual(t, w.PendingBalance, int64(0), "step %d %s", step, op)
				f.assertBalanced(t)
			}
		})
	}
}
