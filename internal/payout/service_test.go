package payout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/memstore"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/payout"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var defaultSettings = payout.Settings{
	MinPayout: 50000,
	AdminFee:  2500,
	LockTTL:   10 * time.Second,
}

type fixture struct {
	store *memstore.Store
	svc   *payout.PayoutService
	user  uuid.UUID
	admin uuid.UUID
}

func newFixture(t *testing.T, settings payout.Settings, credited int64) *fixture {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := zerolog.Nop()

	f := &fixture{store: memstore.New(), user: uuid.New(), admin: uuid.New()}
	require.NoError(t, f.store.CreateProfile(ctx, &model.AffiliateProfile{
		UserID:        f.user,
		AffiliateCode: "andi",
		Status:        model.ApplicationApproved,
		IsActive:      true,
		Bank:          model.BankAccount{BankName: "BCA", AccountName: "Andi", AccountNumber: "1234567890"},
		AppliedAt:     time.Now(),
	}))

	if credited > 0 {
		ls := ledger.NewLedgerService(f.store)
		r, err := ls.Append(ctx, model.RevenueDraft{
			UserID:        f.user,
			TransactionID: uuid.New(),
			Amount:        credited,
			Type:          model.RevenueAffiliateCommission,
			Percentage:    decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		_, err = ls.Approve(ctx, r.ID, f.admin, nil, "")
		require.NoError(t, err)
	}

	f.svc = payout.NewPayoutService(f.store, f.store, redis.NewFromClient(rdb, "test:", &log), settings)
	return f
}

func (f *fixture) wallet(t *testing.T) *model.Wallet {
	t.Helper()
	w, err := f.store.GetWalletByUser(context.Background(), f.user)
	require.NoError(t, err)
	return w
}

func (f *fixture) assertBalanced(t *testing.T) {
	t.Helper()
	r, err := wallet.NewWalletService(f.store).Reconcile(context.Background(), f.user)
	require.NoError(t, err)
	assert.True(t, r.Balanced, "issues: %v", r.Issues)
}

func TestRequestAboveBalanceIsRejected(t *testing.T) {
	f := newFixture(t, defaultSettings, 500000)

	_, err := f.svc.Request(context.Background(), f.user, 600000, "", "")
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)

	items, total, err := f.svc.List(context.Background(), model.ListFilter{UserID: &f.user})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
	assert.Equal(t, int64(500000), f.wallet(t).Balance)
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("below minimum", func(t *testing.T) {
		f := newFixture(t, defaultSettings, 500000)
		_, err := f.svc.Request(ctx, f.user, 10000, "", "")
		assert.ErrorIs(t, err, apperror.ErrBelowMinimumPayout)
	})

	t.Run("no bank account", func(t *testing.T) {
		f := newFixture(t, defaultSettings, 500000)
		p, err := f.store.GetProfileByUser(ctx, f.user)
		require.NoError(t, err)
		_, err = f.store.UpdateProfile(ctx, p.ID, func(p *model.AffiliateProfile) error {
			p.Bank = model.BankAccount{}
			return nil
		})
		require.NoError(t, err)

		_, err = f.svc.Request(ctx, f.user, 100000, "", "")
		assert.ErrorIs(t, err, apperror.ErrNoBankAccount)
	})

	t.Run("no wallet", func(t *testing.T) {
		f := newFixture(t, defaultSettings, 0)
		_, err := f.svc.Request(ctx, f.user, 100000, "", "")
		assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
	})

	t.Run("pin", func(t *testing.T) {
		settings := defaultSettings
		settings.PinRequired = true
		f := newFixture(t, settings, 500000)

		_, err := f.svc.Request(ctx, f.user, 100000, "", "")
		assert.ErrorIs(t, err, apperror.ErrPinRequired)

		hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
		require.NoError(t, err)
		p, err := f.store.GetProfileByUser(ctx, f.user)
		require.NoError(t, err)
		_, err = f.store.UpdateProfile(ctx, p.ID, func(p *model.AffiliateProfile) error {
			p.PinHash = string(hash)
			return nil
		})
		require.NoError(t, err)

		_, err = f.svc.Request(ctx, f.user, 100000, "", "000000")
		assert.ErrorIs(t, err, apperror.ErrInvalidPin)
		_, err = f.svc.Request(ctx, f.user, 100000, "", "123456")
		assert.NoError(t, err)
	})
}

func TestPendingRequestsEarmarkBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultSettings, 500000)

	first, err := f.svc.Request(ctx, f.user, 300000, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPending, first.Status)
	assert.Equal(t, int64(297500), first.NetAmount)

	_, err = f.svc.Request(ctx, f.user, 300000, "", "")
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)

	_, err = f.svc.Request(ctx, f.user, 200000, "", "")
	assert.NoError(t, err)

	w := f.wallet(t)
	assert.Equal(t, int64(500000), w.Balance)
	assert.Zero(t, w.LockedBalance)
	f.assertBalanced(t)
}

func TestConcurrentRequestsCannotOverdraw(t *testing.T) {
	f := newFixture(t, defaultSettings, 500000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Request(context.Background(), f.user, 400000, "", "")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)
	}
	assert.Equal(t, 1, succeeded)
}

func TestApproveThenPayDebitsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultSettings, 500000)

	p, err := f.svc.Request(ctx, f.user, 200000, "", "")
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, p.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutApproved, approved.Status)
	w := f.wallet(t)
	assert.Equal(t, int64(300000), w.Balance)
	assert.Equal(t, int64(200000), w.LockedBalance)
	f.assertBalanced(t)

	paid, err := f.svc.MarkPaid(ctx, p.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	_, err = f.svc.MarkPaid(ctx, p.ID, f.admin)
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	w = f.wallet(t)
	assert.Equal(t, int64(300000), w.Balance)
	assert.Zero(t, w.LockedBalance)
	assert.Equal(t, int64(200000), w.TotalPayout)
	f.assertBalanced(t)

	entries, _, err := f.store.ListWalletEntries(ctx, w.ID, model.ListFilter{})
	require.NoError(t, err)
	var kinds []model.WalletEntryType
	for _, e := range entries {
		kinds = append(kinds, e.Type)
	}
	assert.Equal(t, []model.WalletEntryType{model.EntryPayout, model.EntryPayoutHold, model.EntryCredit}, kinds)
}

func TestPayoutStateMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultSettings, 500000)

	p, err := f.svc.Request(ctx, f.user, 100000, "", "")
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, p.ID, f.admin)
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition, "pending cannot be paid")

	rejected, err := f.svc.Reject(ctx, p.ID, f.admin, "wrong account")
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRejected, rejected.Status)
	assert.Equal(t, "wrong account", rejected.RejectionReason)

	_, err = f.svc.Approve(ctx, p.ID, f.admin)
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition, "rejected is terminal")

	assert.Equal(t, int64(500000), f.wallet(t).Balance)
	f.assertBalanced(t)

	_, err = f.svc.Approve(ctx, uuid.New(), f.admin)
	assert.ErrorIs(t, err, apperror.ErrPayoutNotFound)
}

func TestApproveRechecksBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultSettings, 500000)

	first, err := f.svc.Request(ctx, f.user, 300000, "", "")
	require.NoError(t, err)
	second, err := f.svc.Request(ctx, f.user, 200000, "", "")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, first.ID, f.admin)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, second.ID, f.admin)
	require.NoError(t, err)

	w := f.wallet(t)
	assert.Zero(t, w.Balance)
	assert.Equal(t, int64(500000), w.LockedBalance)
	f.assertBalanced(t)
}
