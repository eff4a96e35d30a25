package reminder

import (
	"context"
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Due is an unpaid checkout that may need a payment reminder.
type Due struct {
	TransactionID uuid.UUID
	UserID        uuid.UUID
	InvoiceNumber string
	Amount        int64
	PaymentURL    string
	CreatedAt     time.Time
}

type ReminderRepository interface {
	ListUnpaid(ctx context.Context, createdAfter, createdBefore time.Time, intervalKey string, limit int) ([]Due, error)
	ClaimReminder(ctx context.Context, log *model.ReminderLog) (bool, error)
	FinishReminder(ctx context.Context, id uuid.UUID, status model.ReminderStatus, at time.Time) error
}

type ReminderRepo struct {
	db *pgxpool.Pool
}

func NewReminderRepository(db *pgxpool.Pool) *ReminderRepo {
	return &ReminderRepo{
		db: db,
	}
}

// PaymentKey is the reminder_key of the payment reminders for a transaction.
func PaymentKey(transactionID uuid.UUID) string {
	return "payment:" + transactionID.String()
}

// ListUnpaid returns pending transactions created in (createdAfter, createdBefore]
// that have no live reminder for intervalKey. A FAILED reminder does not count.
func (rr *ReminderRepo) ListUnpaid(ctx context.Context, createdAfter, createdBefore time.Time, intervalKey string, limit int) ([]Due, error) {
	query := `SELECT t.id, t.user_id, t.invoice_number, t.amount, t.payment_url, t.created_at
		FROM transactions t
		WHERE t.status = 'PENDING' AND t.created_at > $1 AND t.created_at <= $2
		  AND NOT EXISTS (
			SELECT 1 FROM reminder_logs r
			WHERE r.reminder_key = 'payment:' || t.id::text
			  AND r.user_id = t.user_id
			  AND r.interval_key = $3
			  AND r.status <> 'FAILED'
		  )
		ORDER BY t.created_at
		LIMIT $4`

	rows, err := rr.db.Query(ctx, query, createdAfter, createdBefore, intervalKey, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list unpaid transactions")
	}
	defer rows.Close()

	var out []Due
	for rows.Next() {
		var d Due
		if err := rows.Scan(&d.TransactionID, &d.UserID, &d.InvoiceNumber, &d.Amount, &d.PaymentURL, &d.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan unpaid transaction")
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "iterate unpaid transactions")
}

// ClaimReminder inserts the log row that marks a reminder as taken, or takes
// over a FAILED row for the same key and interval so the send is retried.
// It returns false when the reminder is already claimed or sent. On success
// log.ID holds the id of the claimed row.
func (rr *ReminderRepo) ClaimReminder(ctx context.Context, log *model.ReminderLog) (bool, error) {
	query := `INSERT INTO reminder_logs (id, reminder_key, user_id, interval_key, channels, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reminder_key, user_id, interval_key) DO UPDATE
		SET status = EXCLUDED.status, channels = EXCLUDED.channels, sent_at = NULL
		WHERE reminder_logs.status = 'FAILED'
		RETURNING id`

	err := rr.db.QueryRow(ctx, query, log.ID, log.ReminderKey, log.UserID, log.IntervalKey, log.Channels, log.Status).Scan(&log.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "claim reminder")
	}
	return true, nil
}

func (rr *ReminderRepo) FinishReminder(ctx context.Context, id uuid.UUID, status model.ReminderStatus, at time.Time) error {
	_, err := rr.db.Exec(ctx, `UPDATE reminder_logs SET status = $2, sent_at = $3 WHERE id = $1`, id, status, at)
	return errors.Wrap(err, "finish reminder")
}
