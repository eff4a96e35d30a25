package coupon

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

type CouponHandler struct {
	Service *CouponService
}

func NewCouponHandler(service *CouponService) *CouponHandler {
	return &CouponHandler{Service: service}
}

// Validate answers "apply coupon" clicks. Rejections are a normal answer, not an error.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	var req types.ValidateCouponRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	rc := ResolveContext{Type: model.TransactionType(req.Type)}
	if id, ok := middleware.IdentityFrom(ctx); ok {
		rc.UserID = id.UserID
	}

	res, err := h.Service.Resolve(ctx, req.Code, req.Amount, rc)
	if err != nil {
		if k := apperror.KindOf(err); k == apperror.KindInternal {
			logger.Error().Err(err).Msg("Failed to resolve coupon")
			response.Error(w, r, err)
			return
		}
		response.OK(w, types.ValidateCouponResponse{
			Valid:       false,
			Code:        NormalizeCode(req.Code),
			FinalAmount: req.Amount,
			Reason:      apperror.PublicMessage(err),
		})
		return
	}

	out := types.ValidateCouponResponse{
		Valid:          true,
		Code:           res.Coupon.Code,
		DiscountAmount: res.DiscountAmount,
		FinalAmount:    res.FinalAmount,
	}
	if res.AffiliateUserID != nil {
		out.AffiliateID = res.AffiliateUserID.String()
	}
	response.OK(w, out)
}

func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	var req types.CreateCouponRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	c, err := h.Service.CreateCoupon(ctx, &req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create coupon")
		response.Error(w, r, err)
		return
	}
	response.Created(w, c)
}

func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	f := response.ListFilter(r)
	coupons, total, err := h.Service.ListCoupons(r.Context(), f)
	if err != nil {
		middleware.GetLogger(r.Context()).Error().Err(err).Msg("Failed to list coupons")
		response.Error(w, r, err)
		return
	}
	response.List(w, coupons, types.NewPagination(f.Page, f.Limit, total))
}

func (h *CouponHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, apperror.Validation("invalid coupon id"))
		return
	}
	if err := h.Service.DeactivateCoupon(r.Context(), id); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, map[string]string{"id": id.String(), "status": "inactive"})
}
