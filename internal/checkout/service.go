package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/commission"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/coupon"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/psp"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
)

type CouponResolver interface {
	Resolve(ctx context.Context, code string, baseAmount int64, rc coupon.ResolveContext) (*coupon.Resolution, error)
}

type Attributor interface {
	Attribute(ctx context.Context, couponAffiliate *uuid.UUID, referralCode string, buyer uuid.UUID) *model.AffiliateProfile
}

type TransactionWriter interface {
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	SetPaymentDetails(ctx context.Context, id uuid.UUID, providerRef, paymentURL, method string) error
}

type Settings struct {
	AppURL          string
	InvoiceDuration time.Duration
	IdempotencyTTL  time.Duration
	// ItemRates is the only source of item commissions; buyers cannot set them.
	ItemRates commission.ItemRates
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		AppURL:          cfg.Checkout.AppURL,
		InvoiceDuration: cfg.Xendit.InvoiceDuration,
		IdempotencyTTL:  cfg.Checkout.IdempotencyTTL,
		ItemRates:       commission.NewItemRates(cfg.Ledger),
	}
}

// Buyer is the authenticated purchaser.
type Buyer struct {
	UserID uuid.UUID
	Email  string
}

type CheckoutService struct {
	coupons    CouponResolver
	affiliates Attributor
	txns       TransactionWriter
	gateway    psp.Client
	redis      *redis.Client
	settings   Settings
	now        func() time.Time
}

func NewCheckoutService(coupons CouponResolver, affiliates Attributor, txns TransactionWriter, gateway psp.Client, redis *redis.Client, settings Settings) *CheckoutService {
	return &CheckoutService{
		coupons:    coupons,
		affiliates: affiliates,
		txns:       txns,
		gateway:    gateway,
		redis:      redis,
		settings:   settings,
		now:        time.Now,
	}
}

// Checkout creates a PENDING transaction and a payment request for it. A
// repeated idempotency key replays the first response. When the gateway is
// unavailable the buyer gets the manual payment page instead of an error.
func (cs *CheckoutService) Checkout(ctx context.Context, buyer Buyer, req *types.CheckoutRequest, referralCode, idempotencyKey string) (*types.CheckoutResponse, error) {
	logger := middleware.GetLogger(ctx)

	if idempotencyKey == "" {
		return nil, apperror.ErrIdempotencyKeyRequired
	}
	key := "checkout:" + buyer.UserID.String() + ":" + idempotencyKey

	cached, err := cs.redis.CheckAndSetIdempotency(ctx, key, cs.settings.IdempotencyTTL)
	if cached != nil {
		logger.Info().Msg("Returning cached checkout response due to idempotency key")
		var res types.CheckoutResponse
		if err := json.Unmarshal(cached, &res); err != nil {
			return nil, apperror.Internal(err)
		}
		return &res, nil
	}
	if errors.Is(err, redis.ErrKeyExists) {
		logger.Warn().Msg("Checkout still in progress with same idempotency key")
		return nil, apperror.ErrRequestInProgress
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	res, err := cs.checkout(ctx, buyer, req, referralCode)
	if err != nil {
		if ferr := cs.redis.MarkIdempotencyFailed(ctx, key); ferr != nil {
			logger.Warn().Err(ferr).Msg("failed to release idempotency key")
		}
		return nil, err
	}

	if body, err := json.Marshal(res); err == nil {
		if err := cs.redis.MarkIdempotencyComplete(ctx, key, body, cs.settings.IdempotencyTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache checkout response")
		}
	}
	return res, nil
}

func (cs *CheckoutService) checkout(ctx context.Context, buyer Buyer, req *types.CheckoutRequest, referralCode string) (*types.CheckoutResponse, error) {
	logger := middleware.GetLogger(ctx)

	if err := validateChannel(req); err != nil {
		return nil, err
	}
	txnType := model.TransactionType(req.Type)

	txn := &model.Transaction{
		ID:              uuid.New(),
		InvoiceNumber:   cs.invoiceNumber(),
		UserID:          buyer.UserID,
		PayerEmail:      req.PayerEmail,
		Amount:          req.Amount,
		OriginalAmount:  req.Amount,
		Status:          model.TransactionPending,
		Type:            txnType,
		PaymentProvider: constants.PaymentProviderXendit,
		PaymentMethod:   req.PaymentChannel,
		Metadata:        metadataFor(req, cs.settings.ItemRates.Lookup(txnType, req.ItemID)),
	}

	var couponAffiliate *uuid.UUID
	if req.CouponCode != "" {
		res, err := cs.coupons.Resolve(ctx, req.CouponCode, req.Amount, coupon.ResolveContext{Type: txnType, UserID: buyer.UserID})
		if err != nil {
			return nil, err
		}
		txn.CouponID = &res.Coupon.ID
		txn.DiscountAmount = res.DiscountAmount
		txn.Amount = res.FinalAmount
		couponAffiliate = res.AffiliateUserID
	}

	if req.ReferralCode != "" {
		referralCode = req.ReferralCode
	}
	if p := cs.affiliates.Attribute(ctx, couponAffiliate, referralCode, buyer.UserID); p != nil {
		txn.AffiliateID = &p.UserID
	}

	if err := cs.txns.CreateTransaction(ctx, txn); err != nil {
		logger.Error().Err(err).Msg("failed to create transaction")
		return nil, err
	}

	res := &types.CheckoutResponse{
		TransactionID:  txn.ID.String(),
		InvoiceNumber:  txn.InvoiceNumber,
		Amount:         txn.Amount,
		OriginalAmount: txn.OriginalAmount,
		DiscountAmount: txn.DiscountAmount,
		PaymentChannel: req.PaymentChannel,
	}

	providerRef, err := cs.requestPayment(ctx, txn, req, res)
	if err != nil {
		logger.Warn().Err(err).Str("transaction_id", txn.ID.String()).Msg("payment gateway unavailable, falling back to manual payment")
		res.PaymentURL = cs.fallbackURL(txn.ID)
		res.Fallback = true
		providerRef = ""
	}
	if err := cs.txns.SetPaymentDetails(ctx, txn.ID, providerRef, res.PaymentURL, req.PaymentChannel); err != nil {
		logger.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("failed to store payment details")
	}

	logger.Info().
		Str("transaction_id", txn.ID.String()).
		Int64("amount", txn.Amount).
		Bool("attributed", txn.AffiliateID != nil).
		Bool("fallback", res.Fallback).
		Msg("checkout created")
	return res, nil
}

// requestPayment fills the channel-specific fields of res and returns the provider reference.
func (cs *CheckoutService) requestPayment(ctx context.Context, txn *model.Transaction, req *types.CheckoutRequest, res *types.CheckoutResponse) (string, error) {
	switch req.PaymentChannel {
	case constants.ChannelVirtualAccount:
		va, err := cs.gateway.CreateVirtualAccount(ctx, &types.XenditVARequest{
			ExternalID:     txn.InvoiceNumber,
			BankCode:       strings.ToUpper(req.BankCode),
			Name:           req.PayerName,
			ExpectedAmount: txn.Amount,
			IsClosed:       true,
			IsSingleUse:    true,
			ExpirationDate: cs.now().Add(cs.settings.InvoiceDuration),
		})
		if err != nil {
			return "", err
		}
		res.AccountNumber = va.AccountNumber
		res.PaymentURL = cs.fallbackURL(txn.ID)
		return va.ID, nil

	case constants.ChannelEWallet:
		charge, err := cs.gateway.CreateEWalletCharge(ctx, &types.XenditEWalletRequest{
			ReferenceID:    txn.InvoiceNumber,
			Currency:       constants.Currency,
			Amount:         txn.Amount,
			CheckoutMethod: "ONE_TIME_PAYMENT",
			ChannelCode:    constants.EWalletProviders[strings.ToUpper(req.EWalletProvider)],
			ChannelProperties: types.XenditChannelProperties{
				SuccessRedirectURL: cs.successURL(txn.ID),
				MobileNumber:       req.MobileNumber,
			},
		})
		if err != nil {
			return "", err
		}
		res.PaymentURL = charge.CheckoutURL()
		if res.PaymentURL == "" {
			res.PaymentURL = cs.fallbackURL(txn.ID)
		}
		return charge.ID, nil

	case constants.ChannelQRIS:
		qr, err := cs.gateway.CreateQRCode(ctx, &types.XenditQRRequest{
			ReferenceID: txn.InvoiceNumber,
			Type:        "DYNAMIC",
			Currency:    constants.Currency,
			Amount:      txn.Amount,
		})
		if err != nil {
			return "", err
		}
		res.QRString = qr.QRString
		res.PaymentURL = cs.fallbackURL(txn.ID)
		return qr.ID, nil

	default:
		inv, err := cs.gateway.CreateInvoice(ctx, &types.XenditInvoiceRequest{
			ExternalID:         txn.InvoiceNumber,
			Amount:             txn.Amount,
			PayerEmail:         txn.PayerEmail,
			Description:        req.ItemName,
			InvoiceDuration:    int64(cs.settings.InvoiceDuration.Seconds()),
			Currency:           constants.Currency,
			SuccessRedirectURL: cs.successURL(txn.ID),
			FailureRedirectURL: cs.settings.AppURL + "/checkout/failed?transaction=" + txn.ID.String(),
		})
		if err != nil {
			return "", err
		}
		res.PaymentURL = inv.InvoiceURL
		return inv.ID, nil
	}
}

func (cs *CheckoutService) fallbackURL(id uuid.UUID) string {
	return cs.settings.AppURL + "/payment/va/" + id.String()
}

func (cs *CheckoutService) successURL(id uuid.UUID) string {
	return cs.settings.AppURL + "/checkout/success?transaction=" + id.String()
}

func (cs *CheckoutService) invoiceNumber() string {
	return fmt.Sprintf("INV-%s-%s", cs.now().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func validateChannel(req *types.CheckoutRequest) error {
	switch req.PaymentChannel {
	case constants.ChannelVirtualAccount:
		if !constants.VirtualAccountBanks[strings.ToUpper(req.BankCode)] {
			return apperror.ErrInvalidPaymentChannel.WithMessage("unsupported bank " + req.BankCode)
		}
	case constants.ChannelEWallet:
		if _, ok := constants.EWalletProviders[strings.ToUpper(req.EWalletProvider)]; !ok {
			return apperror.ErrInvalidPaymentChannel.WithMessage("unsupported e-wallet " + req.EWalletProvider)
		}
	case constants.ChannelInvoice, constants.ChannelQRIS:
	default:
		return apperror.ErrInvalidPaymentChannel
	}
	return nil
}

func metadataFor(req *types.CheckoutRequest, item *model.ItemCommission) model.TransactionMetadata {
	switch model.TransactionType(req.Type) {
	case model.TransactionMembership:
		return model.MembershipMetadata{
			MembershipID:   req.ItemID,
			MembershipName: req.ItemName,
			DurationMonths: req.DurationMonths,
			ItemCommission: item,
		}
	case model.TransactionCourse:
		return model.CourseMetadata{CourseID: req.ItemID, CourseTitle: req.ItemName, ItemCommission: item}
	default:
		return model.ProductMetadata{
			ProductID:      req.ItemID,
			ProductName:    req.ItemName,
			Quantity:       max(req.Quantity, 1),
			ItemCommission: item,
		}
	}
}

// ProductRequest adapts the simplified product checkout to the general one.
func ProductRequest(req *types.ProductSimpleCheckoutRequest) *types.CheckoutRequest {
	return &types.CheckoutRequest{
		Type:           string(model.TransactionProduct),
		ItemID:         req.ProductID,
		ItemName:       req.ProductName,
		Amount:         req.Amount,
		Quantity:       1,
		CouponCode:     req.CouponCode,
		ReferralCode:   req.ReferralCode,
		PaymentChannel: constants.ChannelInvoice,
		PayerEmail:     req.PayerEmail,
		PayerName:      req.PayerName,
	}
}
