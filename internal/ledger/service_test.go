package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/memstore"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(user uuid.UUID, amount int64, matureAfter time.Time) model.RevenueDraft {
	return model.RevenueDraft{
		UserID:        user,
		TransactionID: uuid.New(),
		Amount:        amount,
		Type:          model.RevenueAffiliateCommission,
		Percentage:    decimal.NewFromInt(10),
		MatureAfter:   matureAfter,
	}
}

func reconcile(t *testing.T, s *memstore.Store, user uuid.UUID) *wallet.Report {
	t.Helper()
	r, err := wallet.NewWalletService(s).Reconcile(context.Background(), user)
	require.NoError(t, err)
	return r
}

func TestAppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := ledger.NewLedgerService(s)
	user := uuid.New()
	d := draft(user, 90000, time.Now().Add(7*24*time.Hour))

	first, err := svc.Append(ctx, d)
	require.NoError(t, err)
	second, err := svc.Append(ctx, d)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	w, err := s.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), w.PendingBalance)
	assert.Equal(t, int64(0), w.Balance)
	assert.Len(t, s.EventsOfType(kafka.EventBalanceUpdated), 1)
}

func TestApproveCreditsBalance(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := ledger.NewLedgerService(s)
	user, admin := uuid.New(), uuid.New()

	r, err := svc.Append(ctx, draft(user, 90000, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, r.ID, admin, nil, "ok")
	require.NoError(t, err)
	assert.Equal(t, model.RevenueApproved, approved.Status)
	assert.Equal(t, &admin, approved.ReviewedBy)

	w, err := s.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.PendingBalance)
	assert.Equal(t, int64(90000), w.Balance)
	assert.Equal(t, int64(90000), w.TotalEarnings)
	assert.True(t, reconcile(t, s, user).Balanced)

	_, err = svc.Approve(ctx, r.ID, admin, nil, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
	_, err = svc.Reject(ctx, r.ID, admin, "too late")
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
}

func TestApproveWithAdjustedAmount(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := ledger.NewLedgerService(s)
	user, admin := uuid.New(), uuid.New()

	r, err := svc.Append(ctx, draft(user, 90000, time.Now()))
	require.NoError(t, err)

	tooMuch := int64(100000)
	_, err = svc.Approve(ctx, r.ID, admin, &tooMuch, "")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	adjusted := int64(45000)
	approved, err := svc.Approve(ctx, r.ID, admin, &adjusted, "partial refund")
	require.NoError(t, err)
	assert.Equal(t, int64(45000), approved.Credited())

	w, err := s.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.PendingBalance)
	assert.Equal(t, int64(45000), w.Balance)
	assert.True(t, reconcile(t, s, user).Balanced)
}

func TestRejectReleasesPending(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := ledger.NewLedgerService(s)
	user := uuid.New()

	r, err := svc.Append(ctx, draft(user, 90000, time.Now()))
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, r.ID, uuid.New(), "refunded")
	require.NoError(t, err)
	assert.Equal(t, model.RevenueRejected, rejected.Status)

	w, err := s.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.PendingBalance)
	assert.Equal(t, int64(0), w.Balance)
	assert.True(t, reconcile(t, s, user).Balanced)
}

func TestMatureRespectsHoldPeriod(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := ledger.NewLedgerService(s)
	user := uuid.New()

	held, err := svc.Append(ctx, draft(user, 50000, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	due, err := svc.Append(ctx, draft(user, 30000, time.Now().Add(-time.Minute)))
	require.NoError(t, err)

	_, err = svc.Mature(ctx, held.ID, ledger.Review{})
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	n, err := svc.MatureDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RevenueMatured, got.Status)
	assert.Nil(t, got.ReviewedBy)

	w, err := s.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), w.PendingBalance)
	assert.Equal(t, int64(30000), w.Balance)
	assert.True(t, reconcile(t, s, user).Balanced)

	n, err = svc.MatureDue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListFiltersByUser(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := ledger.NewLedgerService(s)
	alice, bob := uuid.New(), uuid.New()

	_, err := svc.Append(ctx, draft(alice, 1000, time.Now()))
	require.NoError(t, err)
	_, err = svc.Append(ctx, draft(bob, 2000, time.Now()))
	require.NoError(t, err)

	items, total, err := svc.List(ctx, model.ListFilter{UserID: &alice, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1000), items[0].Amount)
}
