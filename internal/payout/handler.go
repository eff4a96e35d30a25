package payout

import (
	"net/http"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PayoutHandler struct {
	Service *PayoutService
}

func NewPayoutHandler(service *PayoutService) *PayoutHandler {
	return &PayoutHandler{Service: service}
}

func (h *PayoutHandler) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	id, _ := middleware.IdentityFrom(ctx)

	var req types.PayoutRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	p, err := h.Service.Request(ctx, id.UserID, req.Amount, req.Notes, req.Pin)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", id.UserID.String()).Int64("amount", req.Amount).Msg("Payout request refused")
		response.Error(w, r, err)
		return
	}
	response.Created(w, p)
}

func (h *PayoutHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	f := response.ListFilter(r)
	f.UserID = &id.UserID
	h.list(w, r, f)
}

func (h *PayoutHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	f := response.ListFilter(r)
	if q := r.URL.Query().Get("user_id"); q != "" {
		uid, err := uuid.Parse(q)
		if err != nil {
			response.Error(w, r, apperror.Validation("invalid user_id"))
			return
		}
		f.UserID = &uid
	}
	h.list(w, r, f)
}

func (h *PayoutHandler) list(w http.ResponseWriter, r *http.Request, f model.ListFilter) {
	payouts, total, err := h.Service.List(r.Context(), f)
	if err != nil {
		middleware.GetLogger(r.Context()).Error().Err(err).Msg("Failed to list payouts")
		response.Error(w, r, err)
		return
	}
	response.List(w, payouts, types.NewPagination(f.Page, f.Limit, total))
}

func (h *PayoutHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id, admin uuid.UUID, _ *types.ReviewRequest) (*model.Payout, error) {
		return h.Service.Approve(r.Context(), id, admin)
	})
}

func (h *PayoutHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id, admin uuid.UUID, _ *types.ReviewRequest) (*model.Payout, error) {
		return h.Service.MarkPaid(r.Context(), id, admin)
	})
}

func (h *PayoutHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id, admin uuid.UUID, req *types.ReviewRequest) (*model.Payout, error) {
		return h.Service.Reject(r.Context(), id, admin, req.Reason)
	})
}

func (h *PayoutHandler) transition(w http.ResponseWriter, r *http.Request, do func(id, admin uuid.UUID, req *types.ReviewRequest) (*model.Payout, error)) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid payout id"))
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

	p, err := do(payoutID, admin.UserID, &req)
	if err != nil {
		logger.Warn().Err(err).Str("payout_id", payoutID.String()).Msg("Payout transition refused")
		response.Error(w, r, err)
		return
	}
	response.OK(w, p)
}
