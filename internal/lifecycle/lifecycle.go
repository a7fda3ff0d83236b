// Package lifecycle holds the subscription state machine. Nothing here
// touches the store or the network.
package lifecycle

import (
	"slices"
	"time"

	"github.com/lib/pq"

	"github.com/Yukky887/ReminderBot/internal/clock"
	"github.com/Yukky887/ReminderBot/internal/model"
)

type Policy struct {
	Horizons      []int
	PeriodDays    int
	ClaimStatuses []model.SubscriptionStatus
	// Location decides where a billing "day" starts.
	Location *time.Location
}

type Decision struct {
	Status model.SubscriptionStatus
	// Expired is set only on the active -> expired transition.
	Expired     bool
	ReminderDue bool
	Horizon     int
	DaysLeft    int
}

// Decide returns the target status of sub at now and whether a reminder
// for one of the policy horizons is due.
func (p Policy) Decide(sub model.Subscription, now time.Time) Decision {
	now = clock.UTC(now)
	next := clock.UTC(sub.NextPayment)

	d := Decision{
		Status:   sub.Status,
		DaysLeft: clock.DaysUntil(next, now),
	}

	// waiting, expired and suspended only change through an explicit action.
	if sub.Status != model.SubscriptionActive {
		return d
	}

	if now.After(next) {
		d.Status = model.SubscriptionExpired
		d.Expired = true
		return d
	}

	if !slices.Contains(p.Horizons, d.DaysLeft) {
		return d
	}
	if slices.Contains(Notified(sub), int64(d.DaysLeft)) {
		return d
	}

	d.ReminderDue = true
	d.Horizon = d.DaysLeft
	return d
}

func (p Policy) CanClaim(status model.SubscriptionStatus) bool {
	return slices.Contains(p.ClaimStatuses, status)
}

// StartOfDay is the beginning of the billing day containing now.
func (p Policy) StartOfDay(now time.Time) time.Time {
	return clock.StartOfDay(now, p.Location)
}

// NewSubscription describes the first period of a subscription starting now.
func (p Policy) NewSubscription(accountID string, now time.Time) model.CreateSubscriptionParams {
	return model.CreateSubscriptionParams{
		AccountID:   accountID,
		Status:      model.SubscriptionActive,
		NextPayment: clock.UTC(clock.AddDays(now, p.PeriodDays)),
		PeriodDays:  p.PeriodDays,
	}
}

// Notified returns the horizons already reminded for the current period.
// A set recorded against a different next_payment belongs to an earlier
// period and counts as empty.
func Notified(sub model.Subscription) []int64 {
	if sub.NotifiedPeriodEnd == nil {
		return nil
	}
	if !clock.UTC(*sub.NotifiedPeriodEnd).Equal(clock.UTC(sub.NextPayment)) {
		return nil
	}
	return sub.NotifiedHorizons
}

// MarkNotified records horizon as reminded for the current period.
func MarkNotified(sub *model.Subscription, horizon int, at time.Time) {
	set := slices.Clone(Notified(*sub))
	if !slices.Contains(set, int64(horizon)) {
		set = append(set, int64(horizon))
	}
	periodEnd := clock.UTC(sub.NextPayment)
	sentAt := clock.UTC(at)

	sub.NotifiedHorizons = pq.Int64Array(set)
	sub.NotifiedPeriodEnd = &periodEnd
	sub.LastReminderSent = &sentAt
}

// ClearReminders re-arms every horizon.
func ClearReminders(sub *model.Subscription) {
	sub.NotifiedHorizons = pq.Int64Array{}
	sub.NotifiedPeriodEnd = nil
	sub.LastReminderSent = nil
}

// Extend advances next_payment by one period from the later of the current
// next_payment and now. Unused paid time is kept, while a lapsed period is
// not stacked on. The subscription becomes active with reminders re-armed.
func (p Policy) Extend(sub *model.Subscription, now time.Time) {
	if sub.PeriodDays <= 0 {
		sub.PeriodDays = p.PeriodDays
	}
	base := clock.Later(clock.UTC(sub.NextPayment), clock.UTC(now))
	sub.NextPayment = clock.UTC(clock.AddDays(base, sub.PeriodDays))
	sub.Status = model.SubscriptionActive
	ClearReminders(sub)
}

// Reschedule sets next_payment to now plus days without touching status.
func Reschedule(sub *model.Subscription, now time.Time, days int) {
	sub.NextPayment = clock.UTC(clock.AddDays(now, days))
	ClearReminders(sub)
}
