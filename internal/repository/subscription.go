package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Yukky887/ReminderBot/internal/model"
)

type SubscriptionRepository interface {
	FindByAccountID(ctx context.Context, accountID string) (*model.Subscription, error)
	// LockByAccountID reads the subscription with a row lock; only useful inside a transaction.
	LockByAccountID(ctx context.Context, accountID string) (*model.Subscription, error)
	ListByStatus(ctx context.Context, statuses ...model.SubscriptionStatus) ([]model.DueSubscription, error)
	Create(ctx context.Context, params model.CreateSubscriptionParams) (*model.Subscription, error)
	// Save writes status, schedule and reminder bookkeeping in one statement.
	Save(ctx context.Context, sub *model.Subscription) (*model.Subscription, error)
	// MarkExpired moves an active subscription to expired only if its
	// next_payment still equals the value the decision was made on.
	MarkExpired(ctx context.Context, id string, seenNextPayment time.Time) (bool, error)
	// MarkReminded records horizon as notified for the period ending at
	// seenNextPayment, unless the subscription was renewed or deactivated
	// in the meantime.
	MarkReminded(ctx context.Context, id string, seenNextPayment time.Time, horizon int, sentAt time.Time) (bool, error)
	WithTx(tx *sqlx.Tx) SubscriptionRepository
}

type subscriptionRepo struct {
	db sqlxDB
}

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) WithTx(tx *sqlx.Tx) SubscriptionRepository {
	return &subscriptionRepo{db: tx}
}

func (r *subscriptionRepo) FindByAccountID(ctx context.Context, accountID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		SELECT * FROM subscriptions WHERE account_id = $1
	`, accountID)
	return HandleNotFound(normalizeSubscription(&sub), err)
}

func (r *subscriptionRepo) LockByAccountID(ctx context.Context, accountID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		SELECT * FROM subscriptions WHERE account_id = $1 FOR UPDATE
	`, accountID)
	return HandleNotFound(normalizeSubscription(&sub), err)
}

func (r *subscriptionRepo) ListByStatus(ctx context.Context, statuses ...model.SubscriptionStatus) ([]model.DueSubscription, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var subs []model.DueSubscription
	err := r.db.SelectContext(ctx, &subs, `
		SELECT s.*, a.telegram_id
		FROM subscriptions s
		JOIN accounts a ON a.id = s.account_id
		WHERE s.status = ANY($1)
		ORDER BY s.next_payment
	`, pq.Array(names))
	if err != nil {
		return nil, err
	}
	for i := range subs {
		normalizeSubscription(&subs[i].Subscription)
	}
	return subs, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, params model.CreateSubscriptionParams) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		INSERT INTO subscriptions (account_id, status, next_payment, period_days)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.AccountID, params.Status, utc(params.NextPayment), params.PeriodDays)
	if err != nil {
		return nil, err
	}
	return normalizeSubscription(&sub), nil
}

func (r *subscriptionRepo) Save(ctx context.Context, s *model.Subscription) (*model.Subscription, error) {
	horizons := s.NotifiedHorizons
	if horizons == nil {
		horizons = pq.Int64Array{}
	}

	var sub model.Subscription
	err := r.db.GetContext(ctx, &sub, `
		UPDATE subscriptions SET
			status = $2,
			next_payment = $3,
			period_days = $4,
			last_reminder_sent = $5,
			notified_horizons = $6,
			notified_period_end = $7,
			updated_at = now()
		WHERE id = $1
		RETURNING *
	`, s.ID, s.Status, utc(s.NextPayment), s.PeriodDays,
		utcPtr(s.LastReminderSent), horizons, utcPtr(s.NotifiedPeriodEnd))
	return HandleNotFound(normalizeSubscription(&sub), err)
}

func (r *subscriptionRepo) MarkExpired(ctx context.Context, id string, seenNextPayment time.Time) (bool, error) {
	return rowsMatched(r.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			status = 'expired',
			updated_at = now()
		WHERE id = $1 AND status = 'active' AND next_payment = $2
	`, id, utc(seenNextPayment)))
}

func (r *subscriptionRepo) MarkReminded(ctx context.Context, id string, seenNextPayment time.Time, horizon int, sentAt time.Time) (bool, error) {
	return rowsMatched(r.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			notified_horizons = CASE
				WHEN notified_period_end IS DISTINCT FROM next_payment THEN ARRAY[$3::bigint]
				WHEN $3::bigint = ANY(notified_horizons) THEN notified_horizons
				ELSE array_append(notified_horizons, $3::bigint)
			END,
			notified_period_end = next_payment,
			last_reminder_sent = $4,
			updated_at = now()
		WHERE id = $1 AND status = 'active' AND next_payment = $2
	`, id, utc(seenNextPayment), horizon, utc(sentAt)))
}

func normalizeSubscription(s *model.Subscription) *model.Subscription {
	s.NextPayment = utc(s.NextPayment)
	s.LastReminderSent = utcPtr(s.LastReminderSent)
	s.NotifiedPeriodEnd = utcPtr(s.NotifiedPeriodEnd)
	s.CreatedAt = utc(s.CreatedAt)
	s.UpdatedAt = utc(s.UpdatedAt)
	return s
}
