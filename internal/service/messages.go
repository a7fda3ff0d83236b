package service

import (
	"fmt"
	"time"

	"github.com/Yukky887/ReminderBot/internal/model"
)

const (
	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04"
)

func formatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

func formatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateTimeLayout)
}

func reminderText(horizon int, next time.Time, loc *time.Location) string {
	const tail = "\nPress the button below once you have paid."
	switch horizon {
	case 0:
		return fmt.Sprintf("🚨 Less than a day left! Your subscription payment is due %s.", formatDateTime(next, loc)) + tail
	case 1:
		return fmt.Sprintf("⏰ Reminder! Your subscription payment is due tomorrow, %s.", formatDate(next, loc)) + tail
	default:
		return fmt.Sprintf("⏰ Reminder! Your subscription payment is due in %d days, on %s.", horizon, formatDate(next, loc)) + tail
	}
}

func expiredText() string {
	return "❌ Your subscription has expired. Contact the administrator to renew it."
}

func claimAdminText(account *model.Account, sub *model.Subscription, loc *time.Location) string {
	return fmt.Sprintf(
		"💰 Payment reported by %s (id %d).\nStatus: %s, due %s.",
		account.Handle(), account.TelegramID, sub.Status, formatDate(sub.NextPayment, loc),
	)
}

func claimConfirmedText(next time.Time, loc *time.Location) string {
	return fmt.Sprintf("✅ Payment confirmed. Your subscription is active until %s.", formatDate(next, loc))
}

func claimRejectedText() string {
	return "❌ Your payment could not be confirmed. Contact the administrator if this is a mistake."
}

func activatedText(next time.Time, loc *time.Location) string {
	return fmt.Sprintf("✅ Your subscription is active until %s.", formatDate(next, loc))
}

func waitingText() string {
	return "💳 Your subscription is waiting for payment. Press the button below once you have paid."
}

func suspendedText() string {
	return "⏸ Your subscription has been suspended. Contact the administrator for details."
}

func paymentDateText(next time.Time, loc *time.Location) string {
	return fmt.Sprintf("📅 Your next payment date is now %s.", formatDate(next, loc))
}

func payButtonText(next time.Time, loc *time.Location) string {
	return fmt.Sprintf("💳 Your next payment is due %s. Press the button below once you have paid.", formatDate(next, loc))
}
