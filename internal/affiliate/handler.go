package affiliate

import (
	"errors"
	"net/http"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CookieSettings struct {
	Name   string
	TTL    time.Duration
	AppURL string
	Secure bool
}

type AffiliateHandler struct {
	Service *AffiliateService
	cookie  CookieSettings
}

func NewAffiliateHandler(service *AffiliateService, cookie CookieSettings) *AffiliateHandler {
	return &AffiliateHandler{Service: service, cookie: cookie}
}

func (h *AffiliateHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	id, _ := middleware.IdentityFrom(ctx)

	var req types.ApplyAffiliateRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	p, err := h.Service.Apply(ctx, id.UserID, id.Email, &req)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", id.UserID.String()).Msg("Affiliate application refused")
		response.Error(w, r, err)
		return
	}
	response.Created(w, p)
}

// Profile reports status NONE instead of 404 for users who never applied.
func (h *AffiliateHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFrom(ctx)

	p, err := h.Service.Profile(ctx, id.UserID)
	if errors.Is(err, apperror.ErrAffiliateNotFound) {
		response.OK(w, map[string]string{"status": "NONE"})
		return
	}
	if err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("Failed to load affiliate profile")
		response.Error(w, r, err)
		return
	}
	response.OK(w, p)
}

func (h *AffiliateHandler) UpdateBankAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFrom(ctx)

	var req types.BankAccountRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	p, err := h.Service.UpdateBankAccount(ctx, id.UserID, &req)
	if err != nil {
		middleware.GetLogger(ctx).Warn().Err(err).Msg("Failed to update bank account")
		response.Error(w, r, err)
		return
	}
	response.OK(w, p)
}

func (h *AffiliateHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFrom(ctx)

	var req types.CreateLinkRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	l, err := h.Service.CreateLink(ctx, id.UserID, &req)
	if err != nil {
		middleware.GetLogger(ctx).Warn().Err(err).Msg("Failed to create affiliate link")
		response.Error(w, r, err)
		return
	}
	response.Created(w, l)
}

func (h *AffiliateHandler) Links(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFrom(ctx)

	links, err := h.Service.Links(ctx, id.UserID)
	if err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("Failed to list affiliate links")
		response.Error(w, r, err)
		return
	}
	response.OK(w, links)
}

func (h *AffiliateHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFrom(ctx)

	out, err := h.Service.Earnings(ctx, id.UserID)
	if err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("Failed to load earnings")
		response.Error(w, r, err)
		return
	}
	response.OK(w, out)
}

// Go is the referral landing: it remembers the affiliate in a cookie and redirects.
// Unknown codes still redirect so a stale link never shows an error page.
func (h *AffiliateHandler) Go(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	ref, err := h.Service.Click(ctx, code, middleware.ClientIP(r))
	if err != nil {
		middleware.GetLogger(ctx).Info().Err(err).Str("code", code).Msg("Referral code not attributable")
		http.Redirect(w, r, h.cookie.AppURL, http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    ref.Profile.AffiliateCode,
		Path:     "/",
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, ref.Target(h.cookie.AppURL), http.StatusFound)
}

func (h *AffiliateHandler) List(w http.ResponseWriter, r *http.Request) {
	f := response.ListFilter(r)
	profiles, total, err := h.Service.List(r.Context(), f)
	if err != nil {
		middleware.GetLogger(r.Context()).Error().Err(err).Msg("Failed to list affiliates")
		response.Error(w, r, err)
		return
	}
	response.List(w, profiles, types.NewPagination(f.Page, f.Limit, total))
}

func (h *AffiliateHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid affiliate id"))
		return
	}
	admin, _ := middleware.IdentityFrom(ctx)

	p, err := h.Service.Approve(ctx, profileID, admin.UserID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, p)
}

func (h *AffiliateHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid affiliate id"))
		return
	}
	var req types.ReviewRequest
	if r.ContentLength != 0 {
		if err := response.Decode(r, &req); err != nil {
			response.Error(w, r, err)
			return
		}
	}
	admin, _ := middleware.IdentityFrom(ctx)

	p, err := h.Service.Reject(ctx, profileID, admin.UserID, req.Reason)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, p)
}
