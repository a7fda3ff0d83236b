package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yukky887/ReminderBot/internal/clock"
	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
)

func TestSubscriptionService_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and subscription for unknown user", func(t *testing.T) {
		h := newHarness(t)

		result, err := NewSubscriptionService(h.deps).Activate(ctx, 200, adminID)
		require.NoError(t, err)

		assert.True(t, result.Created)
		assert.Equal(t, int64(200), result.Account.TelegramID)
		assert.Equal(t, model.SubscriptionActive, result.Subscription.Status)
		assert.True(t, testNow.Add(30*clock.Day).Equal(result.Subscription.NextPayment))
		assert.True(t, result.TargetNotified)
		assert.Len(t, h.notifier.messagesTo(200), 1)
		assert.Contains(t, h.events.types(), "admin:subscription_activated")
	})

	t.Run("expired subscription restarts from now", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		h.store.addSubscription(account.ID, model.SubscriptionExpired, testNow.Add(-5*clock.Day))

		result, err := NewSubscriptionService(h.deps).Activate(ctx, 200, adminID)
		require.NoError(t, err)

		assert.False(t, result.Created)
		assert.Equal(t, model.SubscriptionActive, result.Subscription.Status)
		assert.True(t, testNow.Add(30*clock.Day).Equal(result.Subscription.NextPayment))
	})

	t.Run("running subscription stacks another period", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		h.store.addSubscription(account.ID, model.SubscriptionActive, testNow.Add(10*clock.Day))

		result, err := NewSubscriptionService(h.deps).Activate(ctx, 200, adminID)
		require.NoError(t, err)
		assert.True(t, testNow.Add(40*clock.Day).Equal(result.Subscription.NextPayment))
	})

	t.Run("clears reminder bookkeeping", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		sub := h.store.addSubscription(account.ID, model.SubscriptionActive, testNow.Add(3*clock.Day))
		_, err := fakeSubscriptions{h.store}.MarkReminded(ctx, sub.ID, sub.NextPayment, 3, testNow)
		require.NoError(t, err)

		result, err := NewSubscriptionService(h.deps).Activate(ctx, 200, adminID)
		require.NoError(t, err)
		assert.Empty(t, result.Subscription.NotifiedHorizons)
		assert.Nil(t, result.Subscription.LastReminderSent)
	})

	t.Run("administrator activating themselves is not notified", func(t *testing.T) {
		h := newHarness(t)

		result, err := NewSubscriptionService(h.deps).Activate(ctx, adminID, adminID)
		require.NoError(t, err)
		assert.False(t, result.TargetNotified)
		assert.Empty(t, h.notifier.messagesTo(adminID))
	})

	t.Run("only the administrator can activate", func(t *testing.T) {
		h := newHarness(t)

		_, err := NewSubscriptionService(h.deps).Activate(ctx, 200, 200)
		assert.Equal(t, apperrors.ErrCodeNotAuthorized, apperrors.GetCode(err))
		assert.Nil(t, h.store.accountByTelegramID(200))
	})

	t.Run("rejects invalid target", func(t *testing.T) {
		h := newHarness(t)

		_, err := NewSubscriptionService(h.deps).Activate(ctx, 0, adminID)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("delivery failure is reported but not fatal", func(t *testing.T) {
		h := newHarness(t)
		h.notifier.failFor(200, errors.New("bot was blocked"))

		result, err := NewSubscriptionService(h.deps).Activate(ctx, 200, adminID)
		require.NoError(t, err)
		assert.False(t, result.TargetNotified)
	})
}

func TestSubscriptionService_StatusChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("set waiting sends the pay button", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		h.store.addSubscription(account.ID, model.SubscriptionActive, testNow.Add(2*clock.Day))

		result, err := NewSubscriptionService(h.deps).SetWaiting(ctx, 200, adminID)
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionWaiting, result.Subscription.Status)

		msgs := h.notifier.messagesTo(200)
		require.Len(t, msgs, 1)
		assert.Equal(t, []notify.Action{notify.PayDoneAction()}, msgs[0].actions)
	})

	t.Run("suspend", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		h.store.addSubscription(account.ID, model.SubscriptionActive, testNow.Add(2*clock.Day))

		result, err := NewSubscriptionService(h.deps).Suspend(ctx, 200, adminID)
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionSuspended, result.Subscription.Status)

		sub, _ := h.store.subscription(account.ID)
		assert.Equal(t, model.SubscriptionSuspended, sub.Status)
	})

	t.Run("requires a subscription", func(t *testing.T) {
		h := newHarness(t)
		h.store.addAccount(200, "")

		_, err := NewSubscriptionService(h.deps).SetWaiting(ctx, 200, adminID)
		assert.Equal(t, apperrors.ErrCodeNoSubscription, apperrors.GetCode(err))
	})

	t.Run("requires an account", func(t *testing.T) {
		h := newHarness(t)

		_, err := NewSubscriptionService(h.deps).Suspend(ctx, 200, adminID)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("non administrator is denied", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		h.store.addSubscription(account.ID, model.SubscriptionActive, testNow.Add(2*clock.Day))

		_, err := NewSubscriptionService(h.deps).Suspend(ctx, 200, 200)
		assert.Equal(t, apperrors.ErrCodeNotAuthorized, apperrors.GetCode(err))

		sub, _ := h.store.subscription(account.ID)
		assert.Equal(t, model.SubscriptionActive, sub.Status)
	})
}

func TestSubscriptionService_SetPaymentDate(t *testing.T) {
	ctx := context.Background()

	t.Run("moves next payment and re-arms reminders", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		sub := h.store.addSubscription(account.ID, model.SubscriptionActive, testNow.Add(clock.Day))
		_, err := fakeSubscriptions{h.store}.MarkReminded(ctx, sub.ID, sub.NextPayment, 1, testNow)
		require.NoError(t, err)

		result, err := NewSubscriptionService(h.deps).SetPaymentDate(ctx, 200, 5, adminID)
		require.NoError(t, err)

		assert.True(t, testNow.Add(5*clock.Day).Equal(result.Subscription.NextPayment))
		assert.Equal(t, model.SubscriptionActive, result.Subscription.Status)
		assert.Empty(t, result.Subscription.NotifiedHorizons)
		assert.Len(t, h.notifier.messagesTo(200), 1)
	})

	t.Run("rejects out of range days", func(t *testing.T) {
		h := newHarness(t)
		svc := NewSubscriptionService(h.deps)

		_, err := svc.SetPaymentDate(ctx, 200, -1, adminID)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

		_, err = svc.SetPaymentDate(ctx, 200, maxPaymentDateDays+1, adminID)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("non administrator is denied before validation", func(t *testing.T) {
		h := newHarness(t)

		_, err := NewSubscriptionService(h.deps).SetPaymentDate(ctx, 200, -1, 200)
		assert.Equal(t, apperrors.ErrCodeNotAuthorized, apperrors.GetCode(err))
	})
}

func TestSubscriptionService_SendPayButton(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the button", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		h.store.addSubscription(account.ID, model.SubscriptionWaiting, testNow.Add(clock.Day))

		require.NoError(t, NewSubscriptionService(h.deps).SendPayButton(ctx, 200, adminID))

		msgs := h.notifier.messagesTo(200)
		require.Len(t, msgs, 1)
		assert.Equal(t, notify.TokenPayDone, msgs[0].actions[0].Token)
	})

	t.Run("reports delivery failure", func(t *testing.T) {
		h := newHarness(t)
		account := h.store.addAccount(200, "")
		h.store.addSubscription(account.ID, model.SubscriptionWaiting, testNow.Add(clock.Day))
		h.notifier.failFor(200, errors.New("chat not found"))

		err := NewSubscriptionService(h.deps).SendPayButton(ctx, 200, adminID)
		assert.Equal(t, apperrors.ErrCodeDeliveryFailure, apperrors.GetCode(err))
	})
}

func TestSubscriptionService_Lookup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.store.addAccount(300, "alice")
	h.store.addAccount(301, "bob")
	h.store.addSubscription(alice.ID, model.SubscriptionActive, testNow.Add(clock.Day))
	svc := NewSubscriptionService(h.deps)

	t.Run("lists accounts with subscription summary", func(t *testing.T) {
		accounts, err := svc.ListAccounts(ctx, adminID, 10, 0)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		require.NotNil(t, accounts[0].SubscriptionStatus)
		assert.Equal(t, model.SubscriptionActive, *accounts[0].SubscriptionStatus)
		assert.Nil(t, accounts[1].SubscriptionStatus)
	})

	t.Run("finds by numeric id", func(t *testing.T) {
		accounts, err := svc.Find(ctx, adminID, "301", 10)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, int64(301), accounts[0].TelegramID)
	})

	t.Run("finds by username", func(t *testing.T) {
		accounts, err := svc.Find(ctx, adminID, "@ALI", 10)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, alice.ID, accounts[0].ID)
	})

	t.Run("unknown id returns empty list", func(t *testing.T) {
		accounts, err := svc.Find(ctx, adminID, "999", 10)
		require.NoError(t, err)
		assert.Empty(t, accounts)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := svc.Find(ctx, adminID, "  ", 10)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("non administrator is denied", func(t *testing.T) {
		_, err := svc.ListAccounts(ctx, 300, 10, 0)
		assert.Equal(t, apperrors.ErrCodeNotAuthorized, apperrors.GetCode(err))
		_, err = svc.Find(ctx, 300, "bob", 10)
		assert.Equal(t, apperrors.ErrCodeNotAuthorized, apperrors.GetCode(err))
	})
}
