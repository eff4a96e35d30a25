package router

import (
	"context"
	"net/http"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/affiliate"
	"github.com/eksporyuk/affiliate-ledger/internal/checkout"
	"github.com/eksporyuk/affiliate-ledger/internal/coupon"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/payout"
	"github.com/eksporyuk/affiliate-ledger/internal/reminder"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
	"github.com/eksporyuk/affiliate-ledger/internal/server"
	"github.com/eksporyuk/affiliate-ledger/internal/transaction"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/eksporyuk/affiliate-ledger/internal/webhook"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Coupon      *coupon.CouponHandler
	Affiliate   *affiliate.AffiliateHandler
	Checkout    *checkout.CheckoutHandler
	Transaction *transaction.TransactionHandler
	Ledger      *ledger.LedgerHandler
	Wallet      *wallet.WalletHandler
	Payout      *payout.PayoutHandler
	Webhook     *webhook.WebhookHandler
	Reminder    *reminder.ReminderHandler
}

func NewRouter(s *server.Server, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	mw := middleware.NewMiddlewares(s)

	// Apply middleware in order
	r.Use(middleware.RequestID)
	r.Use(mw.Tracing.NewRelicMiddleware())
	r.Use(mw.Tracing.EnhanceTracing)
	r.Use(mw.ContextEnhancer.EnhanceContext)
	r.Use(mw.Global.RequestLogger)
	r.Use(mw.Global.Recoverer)
	r.Use(mw.Global.CORS)

	r.Get("/health", health(s))

	// Short links live outside the API prefix so they stay shareable.
	r.Get("/go/{code}", h.Affiliate.Go)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/go/{code}", h.Affiliate.Go)

		r.Post("/webhooks/xendit", h.Webhook.HandleXendit)

		r.With(middleware.CronSecret(s.Config.Auth.CronSecret)).Post("/cron/reminders", h.Reminder.Run)

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth.Authenticate)

			r.With(mw.RateLimit.Limit("coupon_validate", 30, time.Minute)).Post("/coupons/validate", h.Coupon.Validate)

			r.Route("/checkout", func(r chi.Router) {
				r.Use(mw.RateLimit.Limit("checkout", 10, time.Minute))
				r.Post("/", h.Checkout.Checkout)
				r.Post("/product-simple", h.Checkout.ProductSimple)
			})

			r.Get("/transactions/{id}", h.Transaction.Get)

			r.Route("/affiliate", func(r chi.Router) {
				r.Post("/apply", h.Affiliate.Apply)
				r.Get("/profile", h.Affiliate.Profile)
				r.Put("/bank-account", h.Affiliate.UpdateBankAccount)
				r.Get("/links", h.Affiliate.Links)
				r.Post("/links", h.Affiliate.CreateLink)
				r.Get("/earnings", h.Affiliate.Earnings)
				r.Get("/pending-revenues", h.Ledger.ListOwn)
				r.Get("/payouts", h.Payout.ListOwn)
				r.With(mw.RateLimit.Limit("payout_request", 5, time.Minute)).Post("/payouts", h.Payout.Request)
			})

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", h.Wallet.GetWallet)
				r.Get("/entries", h.Wallet.ListEntries)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/transactions", h.Transaction.List)
				r.Get("/transactions/{id}", h.Transaction.Get)
				r.Post("/transactions/{id}/confirm", h.Transaction.Confirm)

				r.Get("/coupons", h.Coupon.List)
				r.Post("/coupons", h.Coupon.Create)
				r.Post("/coupons/{id}/deactivate", h.Coupon.Deactivate)

				r.Get("/affiliates", h.Affiliate.List)
				r.Post("/affiliates/{id}/approve", h.Affiliate.Approve)
				r.Post("/affiliates/{id}/reject", h.Affiliate.Reject)

				r.Get("/pending-revenues", h.Ledger.ListAll)
				r.Post("/pending-revenues/{id}/approve", h.Ledger.Approve)
				r.Post("/pending-revenues/{id}/reject", h.Ledger.Reject)

				r.Get("/payouts", h.Payout.ListAll)
				r.Post("/payouts/{id}/approve", h.Payout.Approve)
				r.Post("/payouts/{id}/reject", h.Payout.Reject)
				r.Post("/payouts/{id}/mark-paid", h.Payout.MarkPaid)

				r.Get("/wallets/{userId}/reconcile", h.Wallet.Reconcile)
			})
		})
	})

	return r
}

func health(s *server.Server) http.HandlerFunc {
	hc := s.Config.Observability.HealthChecks
	checks := map[string]func(context.Context) error{
		"database": s.Db.Ping,
	}
	if s.Redis != nil {
		checks["redis"] = s.Redis.Ping
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		if !hc.Enabled {
			response.OK(w, status)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), hc.Timeout)
		defer cancel()

		healthy := true
		for _, name := range hc.Checks {
			check, ok := checks[name]
			if !ok {
				continue
			}
			status[name] = "ok"
			if err := check(ctx); err != nil {
				middleware.GetLogger(ctx).Error().Err(err).Str("check", name).Msg("health check failed")
				status[name] = "down"
				healthy = false
			}
		}
		if !healthy {
			response.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		response.OK(w, status)
	}
}
