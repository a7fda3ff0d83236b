package model

import (
	"strconv"
	"time"

	"github.com/lib/pq"
)

type Subscription struct {
	ID               string             `db:"id" json:"id"`
	AccountID        string             `db:"account_id" json:"accountId"`
	Status           SubscriptionStatus `db:"status" json:"status"`
	NextPayment      time.Time          `db:"next_payment" json:"nextPayment"`
	PeriodDays       int                `db:"period_days" json:"periodDays"`
	LastReminderSent *time.Time         `db:"last_reminder_sent" json:"lastReminderSent,omitempty"`
	// NotifiedHorizons is only meaningful while NotifiedPeriodEnd equals
	// NextPayment; any other value means no horizon was notified yet.
	NotifiedHorizons  pq.Int64Array `db:"notified_horizons" json:"notifiedHorizons"`
	NotifiedPeriodEnd *time.Time    `db:"notified_period_end" json:"-"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateSubscriptionParams struct {
	AccountID   string
	Status      SubscriptionStatus
	NextPayment time.Time
	PeriodDays  int
}

// DueSubscription is a subscription row loaded for a scheduler tick,
// together with the chat id reminders are delivered to.
type DueSubscription struct {
	Subscription
	TelegramID int64 `db:"telegram_id" json:"telegramId"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
