package model

import (
	"time"
)

type PaymentClaim struct {
	ID         string      `db:"id" json:"id"`
	AccountID  string      `db:"account_id" json:"accountId"`
	Status     ClaimStatus `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
	ResolvedAt *time.Time  `db:"resolved_at" json:"resolvedAt,omitempty"`
	ResolvedBy *int64      `db:"resolved_by" json:"resolvedBy,omitempty"`
}

type ResolveClaimParams struct {
	Status     ClaimStatus
	ResolvedBy int64
	ResolvedAt time.Time
}

type ClaimWithAccount struct {
	PaymentClaim
	TelegramID int64   `db:"telegram_id" json:"telegramId"`
	Username   *string `db:"username" json:"username,omitempty"`
}
