package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/service"
)

// Telegram shows at most 200 characters in a callback answer.
const callbackTextLimit = 200

const userHelp = `Commands:
/start - register
/status - show your subscription
/pay - report a payment
/help - this message`

const adminHelp = `Administrator commands:
/activate [id] - activate a subscription (yours by default)
/users - list accounts
/payments - recent payment reports
/find <id or username> - look up an account
/set_waiting <id> - mark as waiting for payment
/suspend <id> - suspend a subscription
/set_date <id> <days> - move the next payment date
/send_pay_button <id> - send the "I paid" button`

const (
	claimSentText     = "📨 Thanks! Your payment was sent to the administrator for confirmation."
	claimRecordedText = "📨 Thanks! Your payment report was recorded. The administrator will review it soon."
)

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006")
}

func formatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}

func handle(username *string, telegramID int64) string {
	if username != nil && *username != "" {
		return "@" + *username
	}
	return fmt.Sprintf("%d", telegramID)
}

func activationText(r *service.ChangeResult, loc *time.Location) string {
	verb := "renewed"
	if r.Created {
		verb = "activated"
	}
	text := fmt.Sprintf("✅ Subscription for %s %s until %s.",
		r.Account.Handle(), verb, formatDate(r.Subscription.NextPayment, loc))
	return withDeliveryNote(text, r.TargetNotified)
}

func changeText(r *service.ChangeResult, loc *time.Location) string {
	text := fmt.Sprintf("✅ %s: %s, next payment %s.",
		r.Account.Handle(), r.Subscription.Status, formatDate(r.Subscription.NextPayment, loc))
	return withDeliveryNote(text, r.TargetNotified)
}

func withDeliveryNote(text string, notified bool) string {
	if notified {
		return text
	}
	return text + "\n⚠️ The user was not notified."
}

func resolutionText(r *service.ResolveClaimResult, loc *time.Location) string {
	who := r.Account.Handle()
	if r.Claim.Status == model.ClaimConfirmed && r.Subscription != nil {
		return fmt.Sprintf("✅ Payment from %s confirmed. Active until %s.",
			who, formatDate(r.Subscription.NextPayment, loc))
	}
	return fmt.Sprintf("❌ Payment from %s rejected.", who)
}

func usersText(accounts []model.AccountSummary, loc *time.Location) string {
	if len(accounts) == 0 {
		return "No accounts yet."
	}

	var b strings.Builder
	b.WriteString("👥 Accounts:\n")
	for _, a := range accounts {
		fmt.Fprintf(&b, "\n%s (id %d)", a.Handle(), a.TelegramID)
		if a.SubscriptionStatus == nil {
			b.WriteString(": no subscription")
			continue
		}
		fmt.Fprintf(&b, ": %s", *a.SubscriptionStatus)
		if a.NextPayment != nil {
			fmt.Fprintf(&b, ", due %s", formatDate(*a.NextPayment, loc))
		}
	}
	return b.String()
}

func claimsText(claims []model.ClaimWithAccount, loc *time.Location) string {
	if len(claims) == 0 {
		return "No payment reports yet."
	}

	var b strings.Builder
	b.WriteString("💰 Recent payment reports:\n")
	for _, c := range claims {
		fmt.Fprintf(&b, "\n%s %s: %s",
			formatDateTime(c.CreatedAt, loc), handle(c.Username, c.TelegramID), c.Status)
	}
	return b.String()
}

func foundText(accounts []model.Account) string {
	if len(accounts) == 0 {
		return "Nothing found."
	}

	var b strings.Builder
	b.WriteString("🔎 Found:\n")
	for _, a := range accounts {
		fmt.Fprintf(&b, "\n%s (id %d)", a.Handle(), a.TelegramID)
	}
	return b.String()
}
