package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/clock"
	"github.com/Yukky887/ReminderBot/internal/config"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/sse"
)

// Outcome is what one scheduler pass did to one subscription.
type Outcome string

const (
	OutcomeNone           Outcome = "none"
	OutcomeReminded       Outcome = "reminded"
	OutcomeExpired        Outcome = "expired"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
)

type ReminderService struct {
	d Deps
}

func NewReminderService(d Deps) *ReminderService {
	return &ReminderService{d: d}
}

// Candidates loads every subscription the scheduler may act on.
func (s *ReminderService) Candidates(ctx context.Context) ([]model.DueSubscription, error) {
	subs, err := s.d.Subscriptions.ListByStatus(ctx, model.SubscriptionActive)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list active subscriptions: %w", err))
	}
	return subs, nil
}

// Process decides what is due for one subscription and applies it. Writes
// are conditional on next_payment still being the value the decision was
// made on, so a renewal that lands in between always wins.
func (s *ReminderService) Process(ctx context.Context, due model.DueSubscription) (Outcome, error) {
	now := s.d.now()
	decision := s.d.Policy.Decide(due.Subscription, now)
	seen := clock.UTC(due.NextPayment)

	logger := log.With().
		Str("subscriptionId", due.ID).
		Int64("telegramId", due.TelegramID).
		Logger()

	switch {
	case decision.Expired:
		ok, err := s.d.Subscriptions.MarkExpired(ctx, due.ID, seen)
		if err != nil {
			return OutcomeNone, storeErr(fmt.Errorf("mark expired: %w", err))
		}
		if !ok {
			logger.Debug().Msg("subscription changed before expiry was recorded")
			return OutcomeSkipped, nil
		}

		s.d.Metrics.IncExpired()
		logger.Info().Time("nextPayment", seen).Msg("subscription expired")
		s.d.publish(ctx, sse.EventSubscriptionExpired, due.Subscription)

		// The status change is committed; a lost notice is not retried.
		if err := s.d.Notifier.Send(ctx, due.TelegramID, expiredText()); err != nil {
			logger.Warn().Err(err).Msg("expiry notice not delivered")
		}
		return OutcomeExpired, nil

	case decision.ReminderDue:
		text := reminderText(decision.Horizon, seen, s.d.Policy.Location)
		if err := s.d.Notifier.Send(ctx, due.TelegramID, text, notify.PayDoneAction()); err != nil {
			s.d.Metrics.IncReminderFailed()
			return OutcomeDeliveryFailed, err
		}

		// The reminder is out; record it even if the tick ran out of time.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ReminderRecordTimeout)
		ok, err := s.d.Subscriptions.MarkReminded(recordCtx, due.ID, seen, decision.Horizon, now)
		cancel()
		if err != nil {
			// Delivered but not recorded; the next tick sends it again.
			return OutcomeReminded, storeErr(fmt.Errorf("mark reminded: %w", err))
		}
		if !ok {
			logger.Debug().Msg("subscription changed after reminder was sent")
		}

		s.d.Metrics.IncReminderSent(decision.Horizon)
		logger.Info().
			Int("horizon", decision.Horizon).
			Time("nextPayment", seen).
			Msg("reminder sent")
		s.d.publish(ctx, sse.EventReminderSent, map[string]any{
			"subscriptionId": due.ID,
			"horizon":        decision.Horizon,
		})
		return OutcomeReminded, nil
	}

	return OutcomeNone, nil
}
