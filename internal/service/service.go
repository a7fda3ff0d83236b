package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/audit"
	"github.com/Yukky887/ReminderBot/internal/clock"
	"github.com/Yukky887/ReminderBot/internal/database"
	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/lifecycle"
	"github.com/Yukky887/ReminderBot/internal/metrics"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/repository"
	"github.com/Yukky887/ReminderBot/internal/sse"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event sse.Event) error
}

// Deps is shared by every service. AdminID is the only actor allowed to
// resolve claims and change subscriptions by hand.
type Deps struct {
	DB            TxRunner
	Accounts      repository.AccountRepository
	Subscriptions repository.SubscriptionRepository
	Claims        repository.ClaimRepository
	Notifier      notify.Notifier
	Events        EventPublisher
	Metrics       *metrics.Metrics
	Clock         clock.Clock
	Policy        lifecycle.Policy
	AdminID       int64
}

func (d Deps) now() time.Time {
	return clock.UTC(d.Clock.Now())
}

func (d Deps) IsAdmin(telegramID int64) bool {
	return telegramID == d.AdminID
}

func (d Deps) requireAdmin(ctx context.Context, actorID int64, action string) error {
	if d.IsAdmin(actorID) {
		return nil
	}
	audit.Log(ctx, audit.Event{
		Type:    audit.EventDeniedCommand,
		ActorID: actorID,
		Details: map[string]interface{}{"action": action},
	})
	return apperrors.NotAuthorized()
}

// publish is best effort. A lost event only delays the admin stream.
func (d Deps) publish(ctx context.Context, eventType string, data any) {
	if d.Events == nil {
		return
	}

	event, err := sse.NewEvent(eventType, data)
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}

	if err := d.Events.Publish(ctx, sse.TopicAdmin, event); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

// send delivers a notification and reports whether it arrived. Failures are
// logged; callers decide whether that matters.
func (d Deps) send(ctx context.Context, recipientID int64, text string, actions ...notify.Action) bool {
	if err := d.Notifier.Send(ctx, recipientID, text, actions...); err != nil {
		log.Warn().
			Err(err).
			Int64("recipient", recipientID).
			Msg("notification not delivered")
		return false
	}
	return true
}

// storeErr passes AppErrors through and reports anything else as an
// unavailable store.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.StoreUnavailable(err)
}
