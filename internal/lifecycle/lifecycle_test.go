package lifecycle

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yukky887/ReminderBot/internal/clock"
	"github.com/Yukky887/ReminderBot/internal/model"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func testPolicy() Policy {
	return Policy{
		Horizons:      []int{3, 1, 0},
		PeriodDays:    30,
		ClaimStatuses: []model.SubscriptionStatus{model.SubscriptionActive, model.SubscriptionWaiting},
		Location:      time.UTC,
	}
}

func activeSub(next time.Time) model.Subscription {
	return model.Subscription{
		ID:          "sub-1",
		AccountID:   "acc-1",
		Status:      model.SubscriptionActive,
		NextPayment: next,
		PeriodDays:  30,
	}
}

func TestDecide(t *testing.T) {
	p := testPolicy()

	t.Run("active past deadline expires", func(t *testing.T) {
		d := p.Decide(activeSub(testNow.Add(-time.Minute)), testNow)
		assert.True(t, d.Expired)
		assert.Equal(t, model.SubscriptionExpired, d.Status)
		assert.False(t, d.ReminderDue)
	})

	t.Run("deadline equal to now is not yet expired", func(t *testing.T) {
		d := p.Decide(activeSub(testNow), testNow)
		assert.False(t, d.Expired)
		assert.True(t, d.ReminderDue)
		assert.Equal(t, 0, d.Horizon)
	})

	t.Run("three days out is due", func(t *testing.T) {
		d := p.Decide(activeSub(testNow.Add(3*clock.Day)), testNow)
		assert.True(t, d.ReminderDue)
		assert.Equal(t, 3, d.Horizon)
		assert.Equal(t, model.SubscriptionActive, d.Status)
	})

	t.Run("two days out matches no horizon", func(t *testing.T) {
		d := p.Decide(activeSub(testNow.Add(2*clock.Day+time.Hour)), testNow)
		assert.False(t, d.ReminderDue)
		assert.Equal(t, 2, d.DaysLeft)
	})

	t.Run("already notified horizon is not due again", func(t *testing.T) {
		sub := activeSub(testNow.Add(3 * clock.Day))
		MarkNotified(&sub, 3, testNow)
		d := p.Decide(sub, testNow.Add(time.Hour))
		assert.False(t, d.ReminderDue)
	})

	t.Run("day three does not suppress day one", func(t *testing.T) {
		sub := activeSub(testNow.Add(3 * clock.Day))
		MarkNotified(&sub, 3, testNow)

		d := p.Decide(sub, testNow.Add(2*clock.Day))
		require.True(t, d.ReminderDue)
		assert.Equal(t, 1, d.Horizon)
	})

	t.Run("set from an earlier period is ignored", func(t *testing.T) {
		sub := activeSub(testNow.Add(3 * clock.Day))
		old := testNow.Add(-27 * clock.Day)
		sub.NotifiedPeriodEnd = &old
		sub.NotifiedHorizons = pq.Int64Array{3, 1, 0}

		d := p.Decide(sub, testNow)
		assert.True(t, d.ReminderDue)
		assert.Equal(t, 3, d.Horizon)
	})

	t.Run("non-active statuses never transition", func(t *testing.T) {
		for _, status := range []model.SubscriptionStatus{
			model.SubscriptionWaiting, model.SubscriptionExpired, model.SubscriptionSuspended,
		} {
			sub := activeSub(testNow.Add(-10 * clock.Day))
			sub.Status = status
			d := p.Decide(sub, testNow)
			assert.Equal(t, status, d.Status, status)
			assert.False(t, d.Expired, status)
			assert.False(t, d.ReminderDue, status)

			sub.NextPayment = testNow.Add(clock.Day)
			d = p.Decide(sub, testNow)
			assert.False(t, d.ReminderDue, status)
		}
	})

	t.Run("zone-aware deadlines compare as instants", func(t *testing.T) {
		msk := time.FixedZone("MSK", 3*3600)
		sub := activeSub(testNow.Add(time.Hour).In(msk))
		d := p.Decide(sub, testNow)
		assert.False(t, d.Expired)
		assert.Equal(t, 0, d.DaysLeft)
	})
}

func TestDecide_ExactlyOncePerHorizon(t *testing.T) {
	p := testPolicy()
	sub := activeSub(testNow.Add(3 * clock.Day))
	sent := map[int]int{}

	// Tick every ten minutes across the whole period.
	for now := testNow; !now.After(sub.NextPayment); now = now.Add(10 * time.Minute) {
		d := p.Decide(sub, now)
		if d.ReminderDue {
			sent[d.Horizon]++
			MarkNotified(&sub, d.Horizon, now)
		}
	}

	assert.Equal(t, map[int]int{3: 1, 1: 1, 0: 1}, sent)
}

func TestExtend(t *testing.T) {
	p := testPolicy()

	t.Run("extends from future deadline", func(t *testing.T) {
		sub := activeSub(testNow.Add(10 * clock.Day))
		p.Extend(&sub, testNow)
		assert.Equal(t, testNow.Add(40*clock.Day), sub.NextPayment)
		assert.Equal(t, model.SubscriptionActive, sub.Status)
	})

	t.Run("resets from now when lapsed", func(t *testing.T) {
		sub := activeSub(testNow.Add(-5 * clock.Day))
		sub.Status = model.SubscriptionExpired
		p.Extend(&sub, testNow)
		assert.Equal(t, testNow.Add(30*clock.Day), sub.NextPayment)
		assert.Equal(t, model.SubscriptionActive, sub.Status)
	})

	t.Run("uses policy period when unset", func(t *testing.T) {
		sub := activeSub(testNow)
		sub.PeriodDays = 0
		p.Extend(&sub, testNow)
		assert.Equal(t, 30, sub.PeriodDays)
		assert.Equal(t, testNow.Add(30*clock.Day), sub.NextPayment)
	})

	t.Run("re-arms horizons notified before renewal", func(t *testing.T) {
		sub := activeSub(testNow.Add(3 * clock.Day))
		MarkNotified(&sub, 3, testNow)
		p.Extend(&sub, testNow)

		assert.Empty(t, Notified(sub))
		assert.Nil(t, sub.LastReminderSent)

		// 27 days later the new deadline is three days out again.
		d := p.Decide(sub, testNow.Add(30*clock.Day))
		assert.True(t, d.ReminderDue)
		assert.Equal(t, 3, d.Horizon)
	})
}

func TestReschedule(t *testing.T) {
	sub := activeSub(testNow.Add(20 * clock.Day))
	sub.Status = model.SubscriptionWaiting
	MarkNotified(&sub, 3, testNow)

	Reschedule(&sub, testNow, 2)
	assert.Equal(t, testNow.Add(2*clock.Day), sub.NextPayment)
	assert.Equal(t, model.SubscriptionWaiting, sub.Status)
	assert.Empty(t, Notified(sub))
}

func TestMarkNotified(t *testing.T) {
	sub := activeSub(testNow.Add(3 * clock.Day))
	MarkNotified(&sub, 3, testNow)
	MarkNotified(&sub, 3, testNow)
	MarkNotified(&sub, 1, testNow.Add(2*clock.Day))

	assert.ElementsMatch(t, []int64{3, 1}, Notified(sub))
	require.NotNil(t, sub.LastReminderSent)
	assert.Equal(t, testNow.Add(2*clock.Day), *sub.LastReminderSent)
}

func TestPolicy(t *testing.T) {
	p := testPolicy()

	t.Run("CanClaim follows configured statuses", func(t *testing.T) {
		assert.True(t, p.CanClaim(model.SubscriptionActive))
		assert.True(t, p.CanClaim(model.SubscriptionWaiting))
		assert.False(t, p.CanClaim(model.SubscriptionExpired))
		assert.False(t, p.CanClaim(model.SubscriptionSuspended))
	})

	t.Run("NewSubscription starts one period from now", func(t *testing.T) {
		params := p.NewSubscription("acc-1", testNow)
		assert.Equal(t, "acc-1", params.AccountID)
		assert.Equal(t, model.SubscriptionActive, params.Status)
		assert.Equal(t, testNow.Add(30*clock.Day), params.NextPayment)
		assert.Equal(t, 30, params.PeriodDays)
	})

	t.Run("StartOfDay uses billing location", func(t *testing.T) {
		p.Location = time.FixedZone("MSK", 3*3600)
		got := p.StartOfDay(time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC), got)
	})
}
