package main

import (
	"context"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/reminder"
	"github.com/rs/zerolog"
)

type Maturer interface {
	MatureDue(ctx context.Context, limit int) (int, error)
}

type Reminder interface {
	Run(ctx context.Context) (reminder.Result, error)
}

type Expirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// buildJobs lists the periodic ledger jobs. A zero interval disables a job.
func buildJobs(cfg *config.Config, ledger Maturer, reminders Reminder, txns Expirer, log *zerolog.Logger) []job {
	batch := cfg.Scheduler.BatchSize
	all := []job{
		{
			name:     "ledger.mature-due",
			interval: cfg.Scheduler.MaturationInterval,
			run: func(ctx context.Context) error {
				n, err := ledger.MatureDue(ctx, batch)
				if err != nil {
					return err
				}
				log.Info().Int("matured", n).Msg("Matured pending revenues")
				return nil
			},
		},
		{
			name:     "transactions.payment-reminders",
			interval: cfg.Scheduler.ReminderInterval,
			run: func(ctx context.Context) error {
				res, err := reminders.Run(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("sent", res.Sent).Int("failed", res.Failed).Int("skipped", res.Skipped).Msg("Payment reminders run")
				return nil
			},
		},
		{
			name:     "transactions.expire-stale",
			interval: cfg.Scheduler.ExpiryInterval,
			run: func(ctx context.Context) error {
				n, err := txns.ExpireStale(ctx, cfg.Xendit.InvoiceDuration, batch)
				if err != nil {
					return err
				}
				log.Info().Int("expired", n).Msg("Expired stale transactions")
				return nil
			},
		},
	}

	jobs := all[:0]
	for _, j := range all {
		if j.interval > 0 {
			jobs = append(jobs, j)
		}
	}
	return jobs
}
