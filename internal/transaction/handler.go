package transaction

import (
	"net/http"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type TransactionHandler struct {
	transactionService *TransactionService
}

func NewTransactionHandler(transactionService *TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

func (th *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := response.ListFilter(r)
	if q := r.URL.Query().Get("user_id"); q != "" {
		uid, err := uuid.Parse(q)
		if err != nil {
			response.Error(w, r, apperror.Validation("invalid user_id"))
			return
		}
		f.UserID = &uid
	}

	txns, total, err := th.transactionService.List(ctx, f)
	if err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("Failed to list transactions")
		response.Error(w, r, err)
		return
	}
	response.List(w, txns, types.NewPagination(f.Page, f.Limit, total))
}

func (th *TransactionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid transaction id"))
		return
	}
	var req types.ConfirmTransactionRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	admin, _ := middleware.IdentityFrom(ctx)

	txn, err := th.transactionService.Confirm(ctx, id, admin.UserID, &req)
	if err != nil {
		logger.Warn().Err(err).Str("transaction_id", id.String()).Msg("Failed to confirm transaction")
		response.Error(w, r, err)
		return
	}
	response.OK(w, txn)
}

// Get lets buyers poll their own transaction, e.g. from the manual payment page.
func (th *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid transaction id"))
		return
	}

	txn, err := th.transactionService.Get(ctx, id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	caller, _ := middleware.IdentityFrom(ctx)
	if txn.UserID != caller.UserID && !caller.IsAdmin() {
		response.Error(w, r, apperror.ErrTransactionNotFound)
		return
	}
	response.OK(w, txn)
}
