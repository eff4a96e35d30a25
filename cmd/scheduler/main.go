package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/affiliate"
	"github.com/eksporyuk/affiliate-ledger/internal/commission"
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/database"
	"github.com/eksporyuk/affiliate-ledger/internal/ledger"
	"github.com/eksporyuk/affiliate-ledger/internal/logger"
	"github.com/eksporyuk/affiliate-ledger/internal/notification"
	"github.com/eksporyuk/affiliate-ledger/internal/redis"
	"github.com/eksporyuk/affiliate-ledger/internal/reminder"
	"github.com/eksporyuk/affiliate-ledger/internal/transaction"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

const jobTimeout = 5 * time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Scheduler...")

	db, err := database.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	rdb, err := redis.New(&log, &cfg.Redis, loggerService.GetApplication() != nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis")
	}
	defer rdb.Close()

	ledgerService := ledger.NewLedgerService(ledger.NewLedgerRepository(db.Pool))
	transactionService := transaction.NewTransactionService(
		transaction.NewTransactionRepository(db.Pool),
		affiliate.NewAffiliateRepository(db.Pool),
		commission.NewCalculatorFromConfig(cfg.Ledger),
	)
	reminderService := reminder.NewReminderService(reminder.NewReminderRepository(db.Pool), notification.NewClient(cfg.Notification), reminder.Settings{
		After:     cfg.Scheduler.ReminderAfter,
		Window:    cfg.Xendit.InvoiceDuration,
		BatchSize: cfg.Scheduler.BatchSize,
	})

	sched, err := gocron.NewScheduler(
		gocron.WithDistributedLocker(&redisLocker{redis: rdb, ttl: jobTimeout}),
		gocron.WithStopTimeout(30*time.Second),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, j := range buildJobs(cfg, ledgerService, reminderService, transactionService, &log) {
		run := j.run
		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() error {
				jctx, jcancel := context.WithTimeout(ctx, jobTimeout)
				defer jcancel()
				return run(jctx)
			}),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithError(func(_ uuid.UUID, name string, err error) {
					log.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
				}),
			),
		)
		if err != nil {
			log.Fatal().Err(err).Str("job", j.name).Msg("failed to register job")
		}
		log.Info().Str("job", j.name).Dur("interval", j.interval).Msg("Registered job")
	}

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Scheduler...")
	cancel()
	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	log.Info().Msg("Scheduler shutdown complete")
}
