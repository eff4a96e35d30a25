package ledger

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

type LedgerHandler struct {
	Service *LedgerService
}

func NewLedgerHandler(service *LedgerService) *LedgerHandler {
	return &LedgerHandler{Service: service}
}

func (h *LedgerHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	f := response.ListFilter(r)
	f.UserID = &id.UserID
	h.list(w, r, f)
}

func (h *LedgerHandler) ListAll(w http.ResponseWriter, r *http.Request) {
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

func (h *LedgerHandler) list(w http.ResponseWriter, r *http.Request, f model.ListFilter) {
	entries, total, err := h.Service.List(r.Context(), f)
	if err != nil {
		middleware.GetLogger(r.Context()).Error().Err(err).Msg("Failed to list pending revenues")
		response.Error(w, r, err)
		return
	}
	response.List(w, entries, types.NewPagination(f.Page, f.Limit, total))
}

func (h *LedgerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, true)
}

func (h *LedgerHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, false)
}

func (h *LedgerHandler) review(w http.ResponseWriter, r *http.Request, approve bool) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid pending revenue id"))
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

	if approve {
		entry, err := h.Service.Approve(ctx, entryID, admin.UserID, req.AdjustedAmount, req.Reason)
		if err != nil {
			logger.Warn().Err(err).Str("pending_revenue_id", entryID.String()).Msg("Failed to approve pending revenue")
			response.Error(w, r, err)
			return
		}
		response.OK(w, entry)
		return
	}

	entry, err := h.Service.Reject(ctx, entryID, admin.UserID, req.Reason)
	if err != nil {
		logger.Warn().Err(err).Str("pending_revenue_id", entryID.String()).Msg("Failed to reject pending revenue")
		response.Error(w, r, err)
		return
	}
	response.OK(w, entry)
}
