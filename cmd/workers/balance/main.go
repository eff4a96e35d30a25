package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/logger"
	"github.com/eksporyuk/affiliate-ledger/internal/notification"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Balance Worker...")

	kcfg := kafka.DefaultConfig(cfg.Kafka.Brokers)
	dlq, err := kafka.NewProducer(kcfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dead letter producer")
	}
	defer dlq.Close()

	consumer, err := kafka.NewConsumer(kcfg, kafka.GroupBalanceWorker, kafka.TopicBalanceUpdate, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}
	defer consumer.Close()
	consumer.WithDeadLetter(dlq)

	sender := notification.NewClient(cfg.Notification)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Run(ctx, balanceHandler(sender, cfg.Checkout.AppURL, cfg.Ledger.AdminUserID, &log)); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Balance worker stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Balance Worker...")
	cancel()

	log.Info().Msg("Balance Worker shutdown complete")
}
