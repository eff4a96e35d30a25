package affiliate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeAttempts  = 5
	clickDedupTTL = 24 * time.Hour
)

// WalletReader is the slice of the wallet service the earnings summary needs.
type WalletReader interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)
	PayoutTotals(ctx context.Context, w *model.Wallet) (model.PayoutTotals, error)
}

type Settings struct {
	AppURL         string
	MinPayout      int64
	PayoutAdminFee int64
}

type AffiliateService struct {
	repo     AffiliateRepository
	wallets  WalletReader
	redis    *redis.Client
	settings Settings
	now      func() time.Time
}

func NewAffiliateService(repo AffiliateRepository, wallets WalletReader, redis *redis.Client, settings Settings) *AffiliateService {
	return &AffiliateService{
		repo:     repo,
		wallets:  wallets,
		redis:    redis,
		settings: settings,
		now:      time.Now,
	}
}

// NormalizeCode is the stored form of affiliate and link codes.
func NormalizeCode(code string) string {
	return slug.Make(strings.TrimSpace(code))
}

func (as *AffiliateService) shortLink(code string) string {
	return as.settings.AppURL + "/go/" + code
}

// Apply submits an affiliate application. A rejected applicant may apply again.
func (as *AffiliateService) Apply(ctx context.Context, userID uuid.UUID, email string, req *types.ApplyAffiliateRequest) (*model.AffiliateProfile, error) {
	logger := middleware.GetLogger(ctx)

	existing, err := as.repo.GetProfileByUser(ctx, userID)
	switch {
	case err == nil:
		if existing.Status != model.ApplicationRejected {
			return nil, apperror.ErrApplicationExists
		}
		return as.repo.UpdateProfile(ctx, existing.ID, func(p *model.AffiliateProfile) error {
			if p.Status != model.ApplicationRejected {
				return apperror.ErrApplicationExists
			}
			p.Status = model.ApplicationPending
			p.Motivation = req.Motivation
			p.RejectionReason = ""
			p.AppliedAt = as.now()
			p.ReviewedAt = nil
			p.ReviewedBy = nil
			return nil
		})
	case !errors.Is(err, apperror.ErrAffiliateNotFound):
		return nil, err
	}

	preferred := NormalizeCode(req.PreferredCode)
	if req.PreferredCode != "" && (len(preferred) < 3 || len(preferred) > 30) {
		return nil, apperror.Validation("preferred_code must be 3 to 30 letters, digits or dashes")
	}
	base := preferred
	if base == "" {
		base = NormalizeCode(strings.SplitN(email, "@", 2)[0])
		if len(base) < 3 {
			base = "affiliate"
		}
	}

	p := &model.AffiliateProfile{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     model.ApplicationPending,
		IsActive:   false,
		Motivation: req.Motivation,
	}
	for attempt := 0; attempt < codeAttempts; attempt++ {
		p.AffiliateCode = base
		if preferred == "" || attempt > 0 {
			p.AffiliateCode = fmt.Sprintf("%s-%s", base, uuid.NewString()[:4])
		}
		p.ShortLink = as.shortLink(p.AffiliateCode)

		err = as.repo.CreateProfile(ctx, p)
		if !errors.Is(err, apperror.ErrAffiliateCodeTaken) {
			break
		}
		if preferred != "" {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Info().Str("user_id", userID.String()).Str("affiliate_code", p.AffiliateCode).Msg("affiliate application submitted")
	return p, nil
}

func (as *AffiliateService) Approve(ctx context.Context, profileID, adminID uuid.UUID) (*model.AffiliateProfile, error) {
	now := as.now()
	p, err := as.repo.UpdateProfile(ctx, profileID, func(p *model.AffiliateProfile) error {
		if p.Status != model.ApplicationPending {
			return apperror.ErrInvalidStateTransition.WithMessage(fmt.Sprintf("application is %s", p.Status))
		}
		p.Status = model.ApplicationApproved
		p.IsActive = true
		p.ReviewedAt = &now
		p.ReviewedBy = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}
	middleware.GetLogger(ctx).Info().Str("affiliate_id", profileID.String()).Msg("affiliate approved")
	return p, nil
}

func (as *AffiliateService) Reject(ctx context.Context, profileID, adminID uuid.UUID, reason string) (*model.AffiliateProfile, error) {
	now := as.now()
	p, err := as.repo.UpdateProfile(ctx, profileID, func(p *model.AffiliateProfile) error {
		if p.Status != model.ApplicationPending {
			return apperror.ErrInvalidStateTransition.WithMessage(fmt.Sprintf("application is %s", p.Status))
		}
		p.Status = model.ApplicationRejected
		p.IsActive = false
		p.RejectionReason = reason
		p.ReviewedAt = &now
		p.ReviewedBy = &adminID
		return nil
	})
	if err != nil {
		return nil, err
	}
	middleware.GetLogger(ctx).Info().Str("affiliate_id", profileID.String()).Str("reason", reason).Msg("affiliate rejected")
	return p, nil
}

func (as *AffiliateService) Profile(ctx context.Context, userID uuid.UUID) (*model.AffiliateProfile, error) {
	return as.repo.GetProfileByUser(ctx, userID)
}

func (as *AffiliateService) List(ctx context.Context, f model.ListFilter) ([]model.AffiliateProfile, int64, error) {
	return as.repo.ListProfiles(ctx, f)
}

// UpdateBankAccount stores payout details. A non-empty pin replaces the withdrawal PIN.
func (as *AffiliateService) UpdateBankAccount(ctx context.Context, userID uuid.UUID, req *types.BankAccountRequest) (*model.AffiliateProfile, error) {
	current, err := as.repo.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var pinHash string
	if req.Pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		pinHash = string(hash)
	}

	p, err := as.repo.UpdateProfile(ctx, current.ID, func(p *model.AffiliateProfile) error {
		p.Bank = model.BankAccount{
			BankName:      strings.TrimSpace(req.BankName),
			AccountName:   strings.TrimSpace(req.AccountName),
			AccountNumber: strings.TrimSpace(req.AccountNumber),
		}
		if pinHash != "" {
			p.PinHash = pinHash
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	middleware.GetLogger(ctx).Info().Str("user_id", userID.String()).Bool("pin_changed", pinHash != "").Msg("bank account updated")
	return p, nil
}

func (as *AffiliateService) CreateLink(ctx context.Context, userID uuid.UUID, req *types.CreateLinkRequest) (*model.AffiliateLink, error) {
	p, err := as.repo.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !p.CanEarn() {
		return nil, apperror.ErrAffiliateNotApproved
	}
	if !onPlatform(req.TargetURL, as.settings.AppURL) {
		return nil, apperror.ErrInvalidLinkTarget
	}

	l := &model.AffiliateLink{
		ID:          uuid.New(),
		AffiliateID: userID,
		TargetType:  model.TransactionType(req.TargetType),
		TargetID:    req.TargetID,
		TargetURL:   req.TargetURL,
	}
	base := NormalizeCode(p.AffiliateCode + " " + req.TargetID)
	for attempt := 0; attempt < codeAttempts; attempt++ {
		l.Code = fmt.Sprintf("%s-%s", base, uuid.NewString()[:6])
		err = as.repo.CreateLink(ctx, l)
		if !errors.Is(err, apperror.ErrAffiliateCodeTaken) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	middleware.GetLogger(ctx).Info().Str("link_code", l.Code).Str("user_id", userID.String()).Msg("affiliate link created")
	return l, nil
}

func (as *AffiliateService) Links(ctx context.Context, userID uuid.UUID) ([]model.AffiliateLink, error) {
	return as.repo.ListLinks(ctx, userID)
}

// Referral is a resolved /go/{code} visit.
type Referral struct {
	Profile *model.AffiliateProfile
	Link    *model.AffiliateLink
}

// Target is where the visitor is redirected. Links pointing off the platform
// fall back to appURL.
func (r *Referral) Target(appURL string) string {
	if r.Link != nil && onPlatform(r.Link.TargetURL, appURL) {
		return r.Link.TargetURL
	}
	return appURL
}

// onPlatform reports whether target is an http(s) URL on the same host as appURL.
func onPlatform(target, appURL string) bool {
	t, err := url.Parse(target)
	if err != nil || (t.Scheme != "https" && t.Scheme != "http") {
		return false
	}
	app, err := url.Parse(appURL)
	if err != nil || app.Host == "" {
		return false
	}
	return strings.EqualFold(t.Host, app.Host)
}

// ResolveReferral accepts an affiliate code or a link code. Only affiliates
// who can earn resolve.
func (as *AffiliateService) ResolveReferral(ctx context.Context, code string) (*Referral, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperror.ErrAffiliateNotFound
	}

	ref := &Referral{}
	p, err := as.repo.GetProfileByCode(ctx, code)
	if errors.Is(err, apperror.ErrAffiliateNotFound) {
		link, lerr := as.repo.GetLinkByCode(ctx, code)
		if lerr != nil {
			if errors.Is(lerr, apperror.ErrLinkNotFound) {
				return nil, apperror.ErrAffiliateNotFound
			}
			return nil, lerr
		}
		ref.Link = link
		p, err = as.repo.GetProfileByUser(ctx, link.AffiliateID)
	}
	if err != nil {
		return nil, err
	}
	if !p.CanEarn() {
		return nil, apperror.ErrAffiliateNotApproved
	}
	ref.Profile = p
	return ref, nil
}

// Click resolves a referral visit and counts it once per visitor per day.
func (as *AffiliateService) Click(ctx context.Context, code, visitor string) (*Referral, error) {
	ref, err := as.ResolveReferral(ctx, code)
	if err != nil {
		return nil, err
	}
	if ref.Link == nil {
		return ref, nil
	}

	first, err := as.redis.SimpleRateLimit(ctx, "click:"+ref.Link.Code+":"+visitor, 1, clickDedupTTL)
	if err != nil {
		middleware.GetLogger(ctx).Warn().Err(err).Msg("click dedupe unavailable")
		first = true
	}
	if first {
		if err := as.repo.RecordClick(ctx, ref.Link.ID); err != nil {
			middleware.GetLogger(ctx).Warn().Err(err).Str("link_code", ref.Link.Code).Msg("failed to record click")
		}
	}
	return ref, nil
}

// Attribute picks the affiliate credited for a purchase. The coupon's affiliate
// wins over a referral code when it can earn, and buyers never earn from their
// own purchase.
func (as *AffiliateService) Attribute(ctx context.Context, couponAffiliate *uuid.UUID, referralCode string, buyer uuid.UUID) *model.AffiliateProfile {
	logger := middleware.GetLogger(ctx)

	var p *model.AffiliateProfile
	if couponAffiliate != nil {
		found, err := as.repo.GetProfileByUser(ctx, *couponAffiliate)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("affiliate_user_id", couponAffiliate.String()).Msg("coupon affiliate not found")
		case !found.CanEarn():
			logger.Debug().Str("affiliate_user_id", couponAffiliate.String()).Msg("coupon affiliate cannot earn, trying referral")
		default:
			p = found
		}
	}
	if p == nil && referralCode != "" {
		ref, err := as.ResolveReferral(ctx, referralCode)
		if err != nil {
			logger.Debug().Err(err).Str("referral_code", referralCode).Msg("referral not attributable")
			return nil
		}
		p = ref.Profile
	}
	if !p.CanEarn() || p.UserID == buyer {
		return nil
	}
	return p
}

func (as *AffiliateService) Earnings(ctx context.Context, userID uuid.UUID) (*types.EarningsResponse, error) {
	p, err := as.repo.GetProfileByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	w, err := as.wallets.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	payouts, err := as.wallets.PayoutTotals(ctx, w)
	if err != nil {
		return nil, err
	}
	return &types.EarningsResponse{
		Balance:          w.Balance,
		LockedBalance:    w.LockedBalance,
		PendingBalance:   w.PendingBalance,
		AvailableBalance: max(w.Balance-payouts.Pending, 0),
		TotalEarnings:    p.TotalEarnings,
		TotalPayout:      w.TotalPayout,
		TotalConversions: p.TotalConversions,
		PendingPayouts:   payouts.Pending,
		MinPayout:        as.settings.MinPayout,
		PayoutAdminFee:   as.settings.PayoutAdminFee,
	}, nil
}
