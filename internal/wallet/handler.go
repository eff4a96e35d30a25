package wallet

import (
	"net/http"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type WalletHandler struct {
	Service *WalletService
}

func NewWalletHandler(service *WalletService) *WalletHandler {
	return &WalletHandler{
		Service: service,
	}
}

func (wh *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFrom(ctx)

	wallet, err := wh.Service.GetWallet(ctx, id.UserID)
	if err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("Failed to load wallet")
		response.Error(w, r, err)
		return
	}
	response.OK(w, wallet)
}

func (wh *WalletHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := middleware.IdentityFrom(ctx)
	f := response.ListFilter(r)

	entries, total, err := wh.Service.ListEntries(ctx, id.UserID, f)
	if err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("Failed to list wallet entries")
		response.Error(w, r, err)
		return
	}
	response.List(w, entries, types.NewPagination(f.Page, f.Limit, total))
}

func (wh *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid user id"))
		return
	}

	report, err := wh.Service.Reconcile(ctx, userID)
	if err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Str("user_id", userID.String()).Msg("Failed to reconcile wallet")
		response.Error(w, r, err)
		return
	}
	response.OK(w, report)
}
