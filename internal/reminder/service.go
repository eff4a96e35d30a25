package reminder

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/internal/notification"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var channels = []string{notification.ChannelEmail, notification.ChannelInApp}

type Settings struct {
	// After lists how long after checkout each reminder is sent.
	After []time.Duration
	// Window is how long an unpaid invoice stays payable.
	Window      time.Duration
	BatchSize   int
	Concurrency int
}

type Result struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type ReminderService struct {
	repo     ReminderRepository
	sender   notification.Sender
	settings Settings
	now      func() time.Time
}

func NewReminderService(repo ReminderRepository, sender notification.Sender, settings Settings) *ReminderService {
	after := slices.Clone(settings.After)
	slices.Sort(after)
	settings.After = after
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 4
	}
	return &ReminderService{
		repo:     repo,
		sender:   sender,
		settings: settings,
		now:      time.Now,
	}
}

// Run sends every payment reminder that is due. A transaction only receives
// the reminder of the latest interval it has passed; earlier missed intervals
// are not sent late.
func (rs *ReminderService) Run(ctx context.Context) (Result, error) {
	logger := middleware.GetLogger(ctx)
	now := rs.now()

	var sent, failed, skipped atomic.Int64
	for i, after := range rs.settings.After {
		until := rs.settings.Window
		if i+1 < len(rs.settings.After) {
			until = rs.settings.After[i+1]
		}
		if until <= after {
			continue
		}

		due, err := rs.repo.ListUnpaid(ctx, now.Add(-until), now.Add(-after), after.String(), rs.settings.BatchSize)
		if err != nil {
			return Result{}, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(rs.settings.Concurrency)
		for _, d := range due {
			g.Go(func() error {
				ok, err := rs.remind(gctx, d, after)
				switch {
				case err != nil:
					failed.Add(1)
					logger.Warn().Err(err).Str("invoice", d.InvoiceNumber).Dur("after", after).Msg("Payment reminder failed")
				case ok:
					sent.Add(1)
				default:
					skipped.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	res := Result{Sent: int(sent.Load()), Failed: int(failed.Load()), Skipped: int(skipped.Load())}
	logger.Info().Int("sent", res.Sent).Int("failed", res.Failed).Int("skipped", res.Skipped).Msg("Payment reminders processed")
	return res, nil
}

func (rs *ReminderService) remind(ctx context.Context, d Due, after time.Duration) (bool, error) {
	log := &model.ReminderLog{
		ID:          uuid.New(),
		ReminderKey: PaymentKey(d.TransactionID),
		UserID:      d.UserID,
		IntervalKey: after.String(),
		Channels:    channels,
		Status:      model.ReminderClaimed,
	}
	claimed, err := rs.repo.ClaimReminder(ctx, log)
	if err != nil || !claimed {
		return false, err
	}

	sendErr := rs.sender.Send(ctx, notification.Notification{
		UserID:   d.UserID.String(),
		Channels: channels,
		Type:     "PAYMENT_REMINDER",
		Title:    "Selesaikan pembayaran Anda",
		Message:  fmt.Sprintf("Invoice %s sebesar Rp %d menunggu pembayaran.", d.InvoiceNumber, d.Amount),
		Link:     d.PaymentURL,
		Metadata: map[string]string{"invoice_number": d.InvoiceNumber, "interval": log.IntervalKey},
	})

	status := model.ReminderSent
	if sendErr != nil {
		status = model.ReminderFailed
	}
	if err := rs.repo.FinishReminder(ctx, log.ID, status, rs.now()); err != nil {
		return false, err
	}
	return sendErr == nil, sendErr
}
