package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/audit"
	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/lifecycle"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/sse"
	"github.com/Yukky887/ReminderBot/internal/util"
)

const maxPaymentDateDays = 3660

// SubscriptionService holds the administrator's manual operations.
type SubscriptionService struct {
	d Deps
}

func NewSubscriptionService(d Deps) *SubscriptionService {
	return &SubscriptionService{d: d}
}

type ChangeResult struct {
	Account      *model.Account
	Subscription *model.Subscription
	// Created is set when the subscription did not exist before.
	Created        bool
	TargetNotified bool
}

// Activate grants targetID a paid period without a claim. Unknown accounts
// are created. A subscription that has not lapsed keeps its remaining time.
func (s *SubscriptionService) Activate(ctx context.Context, targetID, actorID int64) (*ChangeResult, error) {
	if err := s.d.requireAdmin(ctx, actorID, "activate"); err != nil {
		return nil, err
	}
	if targetID <= 0 {
		return nil, apperrors.InvalidInput("user id", "must be a positive number")
	}

	now := s.d.now()
	result := &ChangeResult{}

	err := s.d.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.d.Accounts.WithTx(tx).Upsert(ctx, model.UpsertAccountParams{TelegramID: targetID})
		if err != nil {
			return fmt.Errorf("upsert account: %w", err)
		}
		result.Account = account

		existing, err := s.d.Subscriptions.WithTx(tx).FindByAccountID(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("find subscription: %w", err)
		}
		result.Created = existing == nil

		sub, err := renew(ctx, s.d, tx, account.ID, now)
		if err != nil {
			return err
		}
		result.Subscription = sub
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventActivation,
		ActorID:   actorID,
		TargetID:  targetID,
		AccountID: result.Account.ID,
		Details: map[string]interface{}{
			"created":     result.Created,
			"nextPayment": result.Subscription.NextPayment,
		},
	})

	if actorID != targetID {
		result.TargetNotified = s.d.send(ctx, targetID, activatedText(result.Subscription.NextPayment, s.d.Policy.Location))
	}
	s.d.publish(ctx, sse.EventSubscriptionActivated, result.Subscription)

	return result, nil
}

// SetWaiting marks the subscription as waiting for payment and sends the
// owner the pay button.
func (s *SubscriptionService) SetWaiting(ctx context.Context, targetID, actorID int64) (*ChangeResult, error) {
	result, err := s.change(ctx, targetID, actorID, "set_waiting", func(sub *model.Subscription, _ time.Time) {
		sub.Status = model.SubscriptionWaiting
	})
	if err != nil {
		return nil, err
	}

	s.recordStatusChange(ctx, result, actorID)
	result.TargetNotified = s.d.send(ctx, targetID, waitingText(), notify.PayDoneAction())
	return result, nil
}

func (s *SubscriptionService) Suspend(ctx context.Context, targetID, actorID int64) (*ChangeResult, error) {
	result, err := s.change(ctx, targetID, actorID, "suspend", func(sub *model.Subscription, _ time.Time) {
		sub.Status = model.SubscriptionSuspended
	})
	if err != nil {
		return nil, err
	}

	s.recordStatusChange(ctx, result, actorID)
	result.TargetNotified = s.d.send(ctx, targetID, suspendedText())
	return result, nil
}

// SetPaymentDate moves next_payment to days from now. Status is left alone.
func (s *SubscriptionService) SetPaymentDate(ctx context.Context, targetID int64, days int, actorID int64) (*ChangeResult, error) {
	if err := s.d.requireAdmin(ctx, actorID, "set_payment_date"); err != nil {
		return nil, err
	}
	if days < 0 || days > maxPaymentDateDays {
		return nil, apperrors.InvalidInput("days", fmt.Sprintf("must be between 0 and %d", maxPaymentDateDays))
	}

	result, err := s.change(ctx, targetID, actorID, "set_payment_date", func(sub *model.Subscription, now time.Time) {
		lifecycle.Reschedule(sub, now, days)
	})
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventPaymentDateOverride,
		ActorID:   actorID,
		TargetID:  targetID,
		AccountID: result.Account.ID,
		Details: map[string]interface{}{
			"days":        days,
			"nextPayment": result.Subscription.NextPayment,
		},
	})
	s.d.publish(ctx, sse.EventSubscriptionChanged, result.Subscription)

	result.TargetNotified = s.d.send(ctx, targetID, paymentDateText(result.Subscription.NextPayment, s.d.Policy.Location))
	return result, nil
}

// SendPayButton reminds the owner out of schedule. Unlike scheduled
// reminders, a failed delivery is reported to the administrator.
func (s *SubscriptionService) SendPayButton(ctx context.Context, targetID, actorID int64) error {
	if err := s.d.requireAdmin(ctx, actorID, "send_pay_button"); err != nil {
		return err
	}

	account, sub, err := s.load(ctx, targetID)
	if err != nil {
		return err
	}

	if err := s.d.Notifier.Send(ctx, targetID, payButtonText(sub.NextPayment, s.d.Policy.Location), notify.PayDoneAction()); err != nil {
		if !apperrors.IsAppError(err) {
			err = apperrors.DeliveryFailure(err)
		}
		return err
	}

	log.Info().
		Str("accountId", account.ID).
		Int64("telegramId", targetID).
		Msg("pay button sent")
	return nil
}

func (s *SubscriptionService) ListAccounts(ctx context.Context, actorID int64, limit, offset int) ([]model.AccountSummary, error) {
	if err := s.d.requireAdmin(ctx, actorID, "list_accounts"); err != nil {
		return nil, err
	}

	accounts, err := s.d.Accounts.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, storeErr(fmt.Errorf("find accounts: %w", err))
	}
	return accounts, nil
}

// Find looks an account up by numeric id, or by username substring.
func (s *SubscriptionService) Find(ctx context.Context, actorID int64, query string, limit int) ([]model.Account, error) {
	if err := s.d.requireAdmin(ctx, actorID, "find"); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidInput("query", "must not be empty")
	}

	if id, ok := util.ParseTelegramID(query); ok {
		account, err := s.d.Accounts.FindByTelegramID(ctx, id)
		if err != nil {
			return nil, storeErr(fmt.Errorf("find account: %w", err))
		}
		if account == nil {
			return []model.Account{}, nil
		}
		return []model.Account{*account}, nil
	}

	accounts, err := s.d.Accounts.FindByUsername(ctx, strings.TrimPrefix(query, "@"), limit)
	if err != nil {
		return nil, storeErr(fmt.Errorf("find accounts: %w", err))
	}
	return accounts, nil
}

func (s *SubscriptionService) load(ctx context.Context, targetID int64) (*model.Account, *model.Subscription, error) {
	account, err := s.d.Accounts.FindByTelegramID(ctx, targetID)
	if err != nil {
		return nil, nil, storeErr(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return nil, nil, apperrors.NotFound("Account")
	}

	sub, err := s.d.Subscriptions.FindByAccountID(ctx, account.ID)
	if err != nil {
		return nil, nil, storeErr(fmt.Errorf("find subscription: %w", err))
	}
	if sub == nil {
		return nil, nil, apperrors.NoSubscription()
	}
	return account, sub, nil
}

// change applies mutate to the target's subscription under a row lock.
func (s *SubscriptionService) change(
	ctx context.Context,
	targetID, actorID int64,
	action string,
	mutate func(sub *model.Subscription, now time.Time),
) (*ChangeResult, error) {
	if err := s.d.requireAdmin(ctx, actorID, action); err != nil {
		return nil, err
	}

	account, err := s.d.Accounts.FindByTelegramID(ctx, targetID)
	if err != nil {
		return nil, storeErr(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return nil, apperrors.NotFound("Account")
	}

	now := s.d.now()
	result := &ChangeResult{Account: account}

	err = s.d.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		subs := s.d.Subscriptions.WithTx(tx)

		sub, err := subs.LockByAccountID(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("lock subscription: %w", err)
		}
		if sub == nil {
			return apperrors.NoSubscription()
		}

		mutate(sub, now)

		saved, err := subs.Save(ctx, sub)
		if err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		result.Subscription = saved
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	log.Info().
		Str("action", action).
		Str("accountId", account.ID).
		Str("status", string(result.Subscription.Status)).
		Time("nextPayment", result.Subscription.NextPayment).
		Msg("subscription changed by administrator")

	return result, nil
}

func (s *SubscriptionService) recordStatusChange(ctx context.Context, result *ChangeResult, actorID int64) {
	audit.Log(ctx, audit.Event{
		Type:      audit.EventStatusChange,
		ActorID:   actorID,
		TargetID:  result.Account.TelegramID,
		AccountID: result.Account.ID,
		Details:   map[string]interface{}{"status": result.Subscription.Status},
	})
	s.d.publish(ctx, sse.EventSubscriptionChanged, result.Subscription)
}
