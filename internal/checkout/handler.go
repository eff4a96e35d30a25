package checkout

import (
	"net/http"

	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
)

type CheckoutHandler struct {
	Service    *CheckoutService
	cookieName string
}

func NewCheckoutHandler(service *CheckoutService, cookieName string) *CheckoutHandler {
	return &CheckoutHandler{Service: service, cookieName: cookieName}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req types.CheckoutRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	h.checkout(w, r, &req)
}

func (h *CheckoutHandler) ProductSimple(w http.ResponseWriter, r *http.Request) {
	var req types.ProductSimpleCheckoutRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	h.checkout(w, r, ProductRequest(&req))
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request, req *types.CheckoutRequest) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	id, _ := middleware.IdentityFrom(ctx)

	res, err := h.Service.Checkout(ctx, Buyer{UserID: id.UserID, Email: id.Email}, req, h.referral(r), r.Header.Get(constants.HeaderIdempotencyKey))
	if err != nil {
		logger.Warn().Err(err).Msg("Checkout failed")
		response.Error(w, r, err)
		return
	}
	response.Created(w, res)
}

// referral reads the ref query parameter, then the referral cookie.
func (h *CheckoutHandler) referral(r *http.Request) string {
	if ref := r.URL.Query().Get(constants.QueryReferral); ref != "" {
		return ref
	}
	if c, err := r.Cookie(h.cookieName); err == nil {
		return c.Value
	}
	return ""
}
