package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eksporyuk/affiliate-ledger/internal/kafka"
	"github.com/eksporyuk/affiliate-ledger/internal/middleware"
	"github.com/eksporyuk/affiliate-ledger/internal/notification"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/rs/zerolog"
)

// balanceNotifications builds the messages for a wallet change: one for the
// wallet owner and, for new payout requests, one for the reviewing admin.
func balanceNotifications(ev types.BalanceUpdateEvent, appURL, adminUserID string) []notification.Notification {
	amount := fmt.Sprintf("Rp %d", ev.Amount)
	n := notification.Notification{
		Channels: []string{notification.ChannelInApp, notification.ChannelEmail},
		Link:     appURL + "/affiliate/earnings",
		Type:     "BALANCE_" + ev.Kind,
		Metadata: map[string]string{"reference": ev.Reference, "walletId": ev.WalletID},
	}
	switch ev.Kind {
	case types.BalanceRevenuePending:
		n.Title = "Komisi baru tercatat"
		n.Message = fmt.Sprintf("Komisi sebesar %s menunggu persetujuan.", amount)
		n.Channels = []string{notification.ChannelInApp}
	case types.BalanceRevenueCredited:
		n.Title = "Komisi disetujui"
		n.Message = fmt.Sprintf("Komisi sebesar %s telah masuk ke saldo Anda.", amount)
	case types.BalancePayoutRequested:
		n.Title = "Permintaan penarikan diterima"
		n.Message = fmt.Sprintf("Permintaan penarikan sebesar %s menunggu persetujuan admin.", amount)
		n.Channels = []string{notification.ChannelInApp}
		n.Link = appURL + "/affiliate/payouts"
	case types.BalanceRevenueRejected:
		n.Title = "Komisi ditolak"
		n.Message = fmt.Sprintf("Komisi sebesar %s tidak disetujui.", amount)
	case types.BalancePayoutApproved:
		n.Title = "Penarikan disetujui"
		n.Message = fmt.Sprintf("Penarikan sebesar %s sedang diproses.", amount)
		n.Link = appURL + "/affiliate/payouts"
	case types.BalancePayoutPaid:
		n.Title = "Penarikan berhasil"
		n.Message = fmt.Sprintf("Dana sebesar %s telah ditransfer ke rekening Anda.", amount)
		n.Link = appURL + "/affiliate/payouts"
	case types.BalancePayoutRejected:
		n.Title = "Penarikan ditolak"
		n.Message = fmt.Sprintf("Penarikan sebesar %s ditolak, saldo tetap tersedia.", amount)
		n.Link = appURL + "/affiliate/payouts"
	default:
		return nil
	}
	n.UserID = ev.UserID
	out := []notification.Notification{n}

	if ev.Kind == types.BalancePayoutRequested && adminUserID != "" {
		out = append(out, notification.Notification{
			UserID:   adminUserID,
			Channels: []string{notification.ChannelInApp, notification.ChannelEmail},
			Title:    "Permintaan penarikan baru",
			Message:  fmt.Sprintf("Affiliate mengajukan penarikan sebesar %s.", amount),
			Link:     appURL + "/admin/payouts",
			Type:     "PAYOUT_REVIEW",
			Metadata: map[string]string{"reference": ev.Reference, "userId": ev.UserID},
		})
	}
	return out
}

func balanceHandler(sender notification.Sender, appURL, adminUserID string, log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		l := log.With().Str("request_id", msg.Headers["correlation_id"]).Int64("offset", msg.Offset).Logger()
		ctx = middleware.WithLogger(ctx, &l)

		var event types.BalanceUpdateEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.Error().Err(err).Msg("Failed to unmarshal balance update message")
			return err
		}
		if event.UserID == "" {
			l.Warn().Str("kind", event.Kind).Msg("Skipping balance update without user")
			return nil
		}

		ns := balanceNotifications(event, appURL, adminUserID)
		if len(ns) == 0 {
			l.Debug().Str("kind", event.Kind).Msg("No notification for balance update")
			return nil
		}

		if err := notification.SendAll(ctx, sender, ns, len(ns)); err != nil {
			l.Error().Err(err).Str("user_id", event.UserID).Str("kind", event.Kind).Msg("Failed to send balance notification")
			return err
		}
		l.Info().Str("user_id", event.UserID).Str("kind", event.Kind).Int64("amount", event.Amount).Msg("Balance notification sent")
		return nil
	}
}
