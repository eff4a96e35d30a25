package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/affiliate"
	"github.com/eksporyuk/affiliate-ledger/internal/checkout"
	"github.com/eksporyuk/affiliate-ledger/internal/commission"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/coupon"
	"github.com/eksporyuk/affiliate-ledger/internal/database"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/logger"
	"github.com/eksporyuk/affiliate-ledger/internal/notification"
	"github.com/eksporyuk/affiliate-ledger/internal/payout"
	"github.com/eksporyuk/affiliate-ledger/internal/psp"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/reminder"
	"github.com/eksporyuk/affiliate-ledger/internal/router"
	"github.com/eksporyuk/affiliate-ledger/internal/server"
	"github.com/eksporyuk/affiliate-ledger/internal/transaction"
	"github.com/eksporyuk/affiliate-ledger/internal/wallet"
	"github.com/eksporyuk/affiliate-ledger/internal/webhook"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	rdb, err := redis.New(&log, &cfg.Redis, loggerService.GetApplication() != nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}
	srv, err := server.NewServer(cfg, &log, loggerService, db, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	couponRepo := coupon.NewCouponRepository(db.Pool)
	affiliateRepo := affiliate.NewAffiliateRepository(db.Pool)
	transactionRepo := transaction.NewTransactionRepository(db.Pool)
	ledgerRepo := ledger.NewLedgerRepository(db.Pool)
	walletRepo := wallet.NewWalletRepository(db.Pool)
	payoutRepo := payout.NewPayoutRepository(db.Pool)
	webhookRepo := webhook.NewWebhookRepository(db.Pool)
	reminderRepo := reminder.NewReminderRepository(db.Pool)

	couponService := coupon.NewCouponService(couponRepo)
	walletService := wallet.NewWalletService(walletRepo)
	affiliateService := affiliate.NewAffiliateService(affiliateRepo, walletService, rdb, affiliate.Settings{
		AppURL:         cfg.Checkout.AppURL,
		MinPayout:      cfg.Ledger.MinPayout,
		PayoutAdminFee: cfg.Ledger.PayoutAdminFee,
	})
	transactionService := transaction.NewTransactionService(transactionRepo, affiliateRepo, commission.NewCalculatorFromConfig(cfg.Ledger))
	checkoutService := checkout.NewCheckoutService(couponService, affiliateService, transactionRepo,
		psp.NewXenditClient(cfg.Xendit), rdb, checkout.SettingsFromConfig(cfg))
	ledgerService := ledger.NewLedgerService(ledgerRepo)
	payoutService := payout.NewPayoutService(payoutRepo, affiliateRepo, rdb, payout.SettingsFromConfig(cfg))
	reminderService := reminder.NewReminderService(reminderRepo, notification.NewClient(cfg.Notification), reminder.Settings{
		After:     cfg.Scheduler.ReminderAfter,
		Window:    cfg.Xendit.InvoiceDuration,
		BatchSize: cfg.Scheduler.BatchSize,
	})

	handlers := &router.Handlers{
		Coupon: coupon.NewCouponHandler(couponService),
		Affiliate: affiliate.NewAffiliateHandler(affiliateService, affiliate.CookieSettings{
			Name:   cfg.Checkout.ReferralCookieName,
			TTL:    cfg.Checkout.ReferralCookieTTL,
			AppURL: cfg.Checkout.AppURL,
			Secure: cfg.Primary.Env == "production",
		}),
		Checkout:    checkout.NewCheckoutHandler(checkoutService, cfg.Checkout.ReferralCookieName),
		Transaction: transaction.NewTransactionHandler(transactionService),
		Ledger:      ledger.NewLedgerHandler(ledgerService),
		Wallet:      wallet.NewWalletHandler(walletService),
		Payout:      payout.NewPayoutHandler(payoutService),
		Webhook:     webhook.NewWebhookHandler(cfg.Xendit.CallbackToken, webhookRepo),
		Reminder:    reminder.NewReminderHandler(reminderService),
	}

	r := router.NewRouter(srv, handlers)

	srv.SetupHTTPServer(r)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
