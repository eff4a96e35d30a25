package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eksporyuk/affiliate-ledger/internal/affiliate"
	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/checkout"
	"github.com/eksporyuk/affiliate-ledger/internal/commission"
	"github.com/eksporyuk/affiliate-ledger/internal/coupon"
	"github.com/eksporyuk/affiliate-ledger/internal/memstore"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appURL = "https://app.eksporyuk.com"

type fakeGateway struct {
	err      error
	invoices []*types.XenditInvoiceRequest
	vas      []*types.XenditVARequest
}

func (g *fakeGateway) CreateInvoice(_ context.Context, req *types.XenditInvoiceRequest) (*types.XenditInvoice, error) {
	g.invoices = append(g.invoices, req)
	if g.err != nil {
		return nil, g.err
	}
	return &types.XenditInvoice{ID: "inv-" + req.ExternalID, ExternalID: req.ExternalID, InvoiceURL: "https://checkout.xendit.co/web/" + req.ExternalID}, nil
}

func (g *fakeGateway) CreateVirtualAccount(_ context.Context, req *types.XenditVARequest) (*types.XenditVA, error) {
	g.vas = append(g.vas, req)
	if g.err != nil {
		return nil, g.err
	}
	return &types.XenditVA{ID: "va-1", ExternalID: req.ExternalID, BankCode: req.BankCode, AccountNumber: "8808123456"}, nil
}

func (g *fakeGateway) CreateEWalletCharge(context.Context, *types.XenditEWalletRequest) (*types.XenditEWalletCharge, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) CreateQRCode(context.Context, *types.XenditQRRequest) (*types.XenditQRCode, error) {
	return nil, errors.New("not used")
}

type fixture struct {
	store   *memstore.Store
	gateway *fakeGateway
	svc     *checkout.CheckoutService
	buyer   checkout.Buyer
	andi    *model.AffiliateProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log := zerolog.Nop()
	rc := redis.NewFromClient(rdb, "test:", &log)

	f := &fixture{
		store:   memstore.New(),
		gateway: &fakeGateway{},
		buyer:   checkout.Buyer{UserID: uuid.New(), Email: "buyer@mail.com"},
		andi: &model.AffiliateProfile{
			UserID:        uuid.New(),
			AffiliateCode: "andi",
			Status:        model.ApplicationApproved,
			IsActive:      true,
			AppliedAt:     time.Now(),
		},
	}
	require.NoError(t, f.store.CreateProfile(ctx, f.andi))
	require.NoError(t, f.store.CreateCoupon(ctx, &model.Coupon{
		Code:          "DISKON10",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
	}))

	affiliates := affiliate.NewAffiliateService(f.store, wallet.NewWalletService(f.store), rc, affiliate.Settings{AppURL: appURL})
	f.svc = checkout.NewCheckoutService(coupon.NewCouponService(f.store), affiliates, f.store, f.gateway, rc, checkout.Settings{
		AppURL:          appURL,
		InvoiceDuration: 24 * time.Hour,
		IdempotencyTTL:  time.Hour,
		ItemRates: commission.ItemRates{
			"MEMBERSHIP:pro-12": {Type: model.CommissionPercentage, Value: decimal.NewFromInt(25)},
		},
	})
	return f
}

func membership() *types.CheckoutRequest {
	return &types.CheckoutRequest{
		Type:           "MEMBERSHIP",
		ItemID:         "pro-12",
		ItemName:       "Membership Pro 12 Bulan",
		Amount:         1000000,
		DurationMonths: 12,
		CouponCode:     "diskon10",
		PaymentChannel: constants.ChannelInvoice,
		PayerEmail:     "buyer@mail.com",
		PayerName:      "Buyer",
	}
}

func TestCheckoutAppliesCouponAndReferral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Checkout(ctx, f.buyer, membership(), "andi", "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900000), res.Amount)
	assert.Equal(t, int64(1000000), res.OriginalAmount)
	assert.Equal(t, int64(100000), res.DiscountAmount)
	assert.Regexp(t, `^INV-\d{8}-[0-9A-F]{8}$`, res.InvoiceNumber)
	assert.False(t, res.Fallback)
	assert.Contains(t, res.PaymentURL, "checkout.xendit.co")

	require.Len(t, f.gateway.invoices, 1)
	assert.Equal(t, int64(900000), f.gateway.invoices[0].Amount)
	assert.Equal(t, int64(86400), f.gateway.invoices[0].InvoiceDuration)

	txn, err := f.store.GetTransactionByInvoice(ctx, res.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionPending, txn.Status)
	require.NotNil(t, txn.AffiliateID)
	assert.Equal(t, f.andi.UserID, *txn.AffiliateID)
	assert.NotNil(t, txn.CouponID)
	assert.Equal(t, "inv-"+res.InvoiceNumber, txn.ProviderRef)

	c, err := f.store.GetByCode(ctx, "DISKON10")
	require.NoError(t, err)
	assert.Zero(t, c.UsageCount, "usage is consumed at settlement")
}

func TestCheckoutIdempotency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Checkout(ctx, f.buyer, membership(), "", "")
	assert.ErrorIs(t, err, apperror.ErrIdempotencyKeyRequired)

	first, err := f.svc.Checkout(ctx, f.buyer, membership(), "", "key-1")
	require.NoError(t, err)
	second, err := f.svc.Checkout(ctx, f.buyer, membership(), "", "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Len(t, f.gateway.invoices, 1)
	_, total, err := f.store.ListTransactions(ctx, model.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCheckoutFallsBackWhenGatewayFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.err = apperror.ErrPaymentProvider.Wrap(errors.New("connection refused"))

	req := membership()
	req.PaymentChannel = constants.ChannelVirtualAccount
	req.BankCode = "bca"

	res, err := f.svc.Checkout(ctx, f.buyer, req, "", "key-1")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, appURL+"/payment/va/"+res.TransactionID, res.PaymentURL)
	require.Len(t, f.gateway.vas, 1)
	assert.Equal(t, "BCA", f.gateway.vas[0].BankCode)

	txn, err := f.store.GetTransactionByInvoice(ctx, res.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, res.PaymentURL, txn.PaymentURL)
	assert.Empty(t, txn.ProviderRef)
}

func TestCheckoutRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := membership()
	req.PaymentChannel = constants.ChannelVirtualAccount
	req.BankCode = "XYZ"
	_, err := f.svc.Checkout(ctx, f.buyer, req, "", "key-1")
	assert.ErrorIs(t, err, apperror.ErrInvalidPaymentChannel)

	req = membership()
	req.CouponCode = "NOPE"
	_, err = f.svc.Checkout(ctx, f.buyer, req, "", "key-2")
	assert.ErrorIs(t, err, apperror.ErrCouponNotFound)

	_, total, err := f.store.ListTransactions(ctx, model.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	// the failed key is released so the buyer can retry
	_, err = f.svc.Checkout(ctx, f.buyer, membership(), "", "key-2")
	assert.NoError(t, err)
}

func TestSelfReferralIsNotAttributed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.buyer.UserID = f.andi.UserID

	res, err := f.svc.Checkout(ctx, f.buyer, membership(), "andi", "key-1")
	require.NoError(t, err)
	txn, err := f.store.GetTransactionByInvoice(ctx, res.InvoiceNumber)
	require.NoError(t, err)
	assert.Nil(t, txn.AffiliateID)
}

func TestCheckoutIgnoresCommissionInRequestBody(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	body := []byte(`{"type":"MEMBERSHIP","item_id":"pro-12","item_name":"Membership Pro 12 Bulan","amount":900000,
		"payment_channel":"INVOICE","payer_email":"buyer@mail.com","payer_name":"Buyer",
		"item_commission":{"type":"FLAT","value":"900000"}}`)
	var req types.CheckoutRequest
	require.NoError(t, json.Unmarshal(body, &req))

	res, err := f.svc.Checkout(ctx, f.buyer, &req, "andi", "key-commission")
	require.NoError(t, err)

	txn, err := f.store.GetTransactionByInvoice(ctx, res.InvoiceNumber)
	require.NoError(t, err)
	ic := txn.Metadata.Commission()
	require.NotNil(t, ic)
	assert.Equal(t, model.CommissionPercentage, ic.Type)
	assert.Equal(t, "25", ic.Value.String())
}

func TestCheckoutItemWithoutConfiguredCommission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := membership()
	req.ItemID = "basic-1"
	res, err := f.svc.Checkout(ctx, f.buyer, req, "andi", "key-basic")
	require.NoError(t, err)

	txn, err := f.store.GetTransactionByInvoice(ctx, res.InvoiceNumber)
	require.NoError(t, err)
	assert.Nil(t, txn.Metadata.Commission())
}
