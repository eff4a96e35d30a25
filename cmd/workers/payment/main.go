package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eksporyuk/affiliate-ledger/internal/affiliate"
	"github.com/eksporyuk/affiliate-ledger/internal/commission"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/database"
	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/logger"
	"github.com/eksporyuk/affiliate-ledger/internal/transaction"
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

	log.Info().Msg("Starting Payment Worker...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	transactionService := transaction.NewTransactionService(
		transaction.NewTransactionRepository(db.Pool),
		affiliate.NewAffiliateRepository(db.Pool),
		commission.NewCalculatorFromConfig(cfg.Ledger),
	)
	webhookRepo := webhook.NewWebhookRepository(db.Pool)

	kcfg := kafka.DefaultConfig(cfg.Kafka.Brokers)
	dlq, err := kafka.NewProducer(kcfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dead letter producer")
	}
	defer dlq.Close()

	consumer, err := kafka.NewConsumer(kcfg, kafka.GroupPaymentWorker, kafka.TopicPaymentReceived, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}
	defer consumer.Close()
	consumer.WithDeadLetter(dlq)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Run(ctx, paymentHandler(transactionService, webhookRepo, &log)); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Payment worker stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Payment Worker...")
	cancel()

	log.Info().Msg("Payment Worker shutdown complete")
}
