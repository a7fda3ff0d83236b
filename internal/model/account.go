package model

import (
	"time"
)

type Account struct {
	ID         string    `db:"id" json:"id"`
	TelegramID int64     `db:"telegram_id" json:"telegramId"`
	Username   *string   `db:"username" json:"username,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Handle returns "@username" when known, otherwise the numeric id.
func (a *Account) Handle() string {
	if a.Username != nil && *a.Username != "" {
		return "@" + *a.Username
	}
	return formatID(a.TelegramID)
}

type UpsertAccountParams struct {
	TelegramID int64
	Username   *string
}

// AccountSummary is an account joined with its subscription, if any.
type AccountSummary struct {
	Account
	SubscriptionStatus *SubscriptionStatus `db:"subscription_status" json:"subscriptionStatus,omitempty"`
	NextPayment        *time.Time          `db:"next_payment" json:"nextPayment,omitempty"`
}
