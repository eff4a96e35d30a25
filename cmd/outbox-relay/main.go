package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/database"
	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/logger"
	"github.com/eksporyuk/affiliate-ledger/internal/outbox"
)

// The relay moves committed ledger events (payments received, balance
// changes) from transaction_outbox to Kafka.
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
	defer db.Close()

	kcfg := kafka.DefaultConfig(cfg.Kafka.Brokers)
	kcfg.ClientID = "affiliate-ledger-outbox-relay"
	producer, err := kafka.NewProducer(kcfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka producer")
	}
	defer producer.Close()

	relay := outbox.NewRelay(db.Pool, producer, &log, outbox.RelaySettings{
		BatchSize:  cfg.Kafka.OutboxBatchSize,
		Interval:   cfg.Kafka.OutboxInterval,
		MaxRetries: cfg.Kafka.OutboxMaxRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Strs("brokers", kcfg.Brokers).Msg("outbox relay started")

	// Start blocks until a shutdown signal cancels ctx.
	if err := relay.Start(ctx); err != nil {
		log.Error().Err(err).Msg("outbox relay stopped with error")
	}
	log.Info().Msg("outbox relay stopped")
}
