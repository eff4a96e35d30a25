package affiliate_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eksporyuk/affiliate-ledger/internal/affiliate"
	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/memstore"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const motivation = "Saya ingin membantu UMKM mulai ekspor."

func newService(t *testing.T) (*affiliate.AffiliateService, *memstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := zerolog.Nop()

	s := memstore.New()
	svc := affiliate.NewAffiliateService(s, wallet.NewWalletService(s), redis.NewFromClient(rdb, "test:", &log), affiliate.Settings{
		AppURL:         "https://app.eksporyuk.com",
		MinPayout:      50000,
		PayoutAdminFee: 2500,
	})
	return svc, s
}

func approved(t *testing.T, svc *affiliate.AffiliateService, code string) *model.AffiliateProfile {
	t.Helper()
	ctx := context.Background()
	p, err := svc.Apply(ctx, uuid.New(), code+"@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation, PreferredCode: code})
	require.NoError(t, err)
	p, err = svc.Approve(ctx, p.ID, uuid.New())
	require.NoError(t, err)
	return p
}

func TestApplyAndReview(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	user, admin := uuid.New(), uuid.New()

	p, err := svc.Apply(ctx, user, "andi@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation, PreferredCode: "Andi Ekspor"})
	require.NoError(t, err)
	assert.Equal(t, "andi-ekspor", p.AffiliateCode)
	assert.Equal(t, "https://app.eksporyuk.com/go/andi-ekspor", p.ShortLink)
	assert.Equal(t, model.ApplicationPending, p.Status)
	assert.False(t, p.CanEarn())

	_, err = svc.Apply(ctx, user, "andi@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation})
	assert.ErrorIs(t, err, apperror.ErrApplicationExists)

	rejected, err := svc.Reject(ctx, p.ID, admin, "incomplete")
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationRejected, rejected.Status)

	_, err = svc.Approve(ctx, p.ID, admin)
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	again, err := svc.Apply(ctx, user, "andi@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, model.ApplicationPending, again.Status)
	assert.Empty(t, again.RejectionReason)

	ok, err := svc.Approve(ctx, p.ID, admin)
	require.NoError(t, err)
	assert.True(t, ok.CanEarn())
	assert.Equal(t, &admin, ok.ReviewedBy)
}

func TestApplyGeneratesCodeFromEmail(t *testing.T) {
	svc, _ := newService(t)

	p, err := svc.Apply(context.Background(), uuid.New(), "budi.santoso@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation})
	require.NoError(t, err)
	assert.Regexp(t, `^budi-santoso-[0-9a-f]{4}$`, p.AffiliateCode)
}

func TestPreferredCodeTaken(t *testing.T) {
	svc, _ := newService(t)
	approved(t, svc, "andi")

	_, err := svc.Apply(context.Background(), uuid.New(), "x@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation, PreferredCode: "ANDI"})
	assert.ErrorIs(t, err, apperror.ErrAffiliateCodeTaken)
}

func TestResolveReferral(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	andi := approved(t, svc, "andi")

	ref, err := svc.ResolveReferral(ctx, " ANDI ")
	require.NoError(t, err)
	assert.Equal(t, andi.UserID, ref.Profile.UserID)
	assert.Nil(t, ref.Link)
	assert.Equal(t, "https://app.eksporyuk.com", ref.Target("https://app.eksporyuk.com"))

	pending, err := svc.Apply(ctx, uuid.New(), "budi@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation, PreferredCode: "budi"})
	require.NoError(t, err)
	_, err = svc.ResolveReferral(ctx, pending.AffiliateCode)
	assert.ErrorIs(t, err, apperror.ErrAffiliateNotApproved)

	_, err = svc.ResolveReferral(ctx, "nobody")
	assert.ErrorIs(t, err, apperror.ErrAffiliateNotFound)
}

func TestLinksAndClicks(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	andi := approved(t, svc, "andi")

	link, err := svc.CreateLink(ctx, andi.UserID, &types.CreateLinkRequest{
		TargetType: "MEMBERSHIP",
		TargetID:   "pro-12",
		TargetURL:  "https://app.eksporyuk.com/membership/pro-12",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^andi-pro-12-[0-9a-f]{6}$`, link.Code)

	for range 3 {
		ref, err := svc.Click(ctx, link.Code, "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, link.TargetURL, ref.Target("https://app.eksporyuk.com"))
	}
	_, err = svc.Click(ctx, link.Code, "198.51.100.2")
	require.NoError(t, err)

	stored, err := s.GetLinkByCode(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Clicks)

	links, err := svc.Links(ctx, andi.UserID)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	pending, err := svc.Apply(ctx, uuid.New(), "budi@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation})
	require.NoError(t, err)
	_, err = svc.CreateLink(ctx, pending.UserID, &types.CreateLinkRequest{TargetType: "PRODUCT", TargetID: "x", TargetURL: "https://x.id"})
	assert.ErrorIs(t, err, apperror.ErrAffiliateNotApproved)
}

func TestLinksStayOnPlatform(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	andi := approved(t, svc, "andi")

	for _, target := range []string{"https://evil.example/phish", "javascript:alert(1)", "https://app.eksporyuk.com.evil.example/x"} {
		_, err := svc.CreateLink(ctx, andi.UserID, &types.CreateLinkRequest{TargetType: "PRODUCT", TargetID: "ebook-1", TargetURL: target})
		assert.ErrorIs(t, err, apperror.ErrInvalidLinkTarget, target)
	}

	// Rows written before the check are still redirected to the platform.
	require.NoError(t, s.CreateLink(ctx, &model.AffiliateLink{
		ID:          uuid.New(),
		AffiliateID: andi.UserID,
		Code:        "andi-legacy",
		TargetType:  model.TransactionProduct,
		TargetID:    "ebook-1",
		TargetURL:   "https://evil.example/phish",
	}))
	ref, err := svc.ResolveReferral(ctx, "andi-legacy")
	require.NoError(t, err)
	assert.Equal(t, "https://app.eksporyuk.com", ref.Target("https://app.eksporyuk.com"))
}

func TestAttribute(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	andi := approved(t, svc, "andi")
	budi := approved(t, svc, "budi")
	buyer := uuid.New()

	got := svc.Attribute(ctx, nil, "andi", buyer)
	require.NotNil(t, got)
	assert.Equal(t, andi.UserID, got.UserID)

	got = svc.Attribute(ctx, &budi.UserID, "andi", buyer)
	require.NotNil(t, got)
	assert.Equal(t, budi.UserID, got.UserID, "coupon affiliate wins over referral")

	pending, err := svc.Apply(ctx, uuid.New(), "citra@mail.com", &types.ApplyAffiliateRequest{Motivation: motivation, PreferredCode: "citra"})
	require.NoError(t, err)
	got = svc.Attribute(ctx, &pending.UserID, "andi", buyer)
	require.NotNil(t, got, "falls back to the referral when the coupon affiliate cannot earn")
	assert.Equal(t, andi.UserID, got.UserID)
	assert.Nil(t, svc.Attribute(ctx, &pending.UserID, "", buyer))

	assert.Nil(t, svc.Attribute(ctx, nil, "andi", andi.UserID), "self referral")
	assert.Nil(t, svc.Attribute(ctx, nil, "unknown", buyer))
	assert.Nil(t, svc.Attribute(ctx, nil, "", buyer))
}

func TestEarnings(t *testing.T) {
	ctx := context.Background()
	svc, s := newService(t)
	andi := approved(t, svc, "andi")
	s.SeedWallet(model.Wallet{UserID: andi.UserID, Balance: 300000, PendingBalance: 90000, TotalEarnings: 300000})

	e, err := svc.Earnings(ctx, andi.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), e.Balance)
	assert.Equal(t, int64(300000), e.AvailableBalance)
	assert.Equal(t, int64(90000), e.PendingBalance)
	assert.Equal(t, int64(50000), e.MinPayout)
}

func TestUpdateBankAccountHashesPin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	andi := approved(t, svc, "andi")

	p, err := svc.UpdateBankAccount(ctx, andi.UserID, &types.BankAccountRequest{
		BankName: "BCA", AccountName: " Andi ", AccountNumber: "1234567890", Pin: "123456",
	})
	require.NoError(t, err)
	assert.True(t, p.Bank.Configured())
	assert.Equal(t, "Andi", p.Bank.AccountName)
	assert.NotEmpty(t, p.PinHash)
	assert.NotEqual(t, "123456", p.PinHash)
}
