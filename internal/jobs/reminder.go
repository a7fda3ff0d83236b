package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Yukky887/ReminderBot/internal/config"
	"github.com/Yukky887/ReminderBot/internal/metrics"
	"github.com/Yukky887/ReminderBot/internal/model"
	redisclient "github.com/Yukky887/ReminderBot/internal/redis"
	"github.com/Yukky887/ReminderBot/internal/service"
	"github.com/Yukky887/ReminderBot/internal/util"
)

const minTickTimeout = 30 * time.Second

const (
	TickOK         = "ok"
	TickPartial    = "partial"
	TickSkipped    = "skipped"
	TickStoreError = "store_error"
)

type ReminderProcessor interface {
	Candidates(ctx context.Context) ([]model.DueSubscription, error)
	Process(ctx context.Context, due model.DueSubscription) (service.Outcome, error)
}

// TickLease keeps replicas from ticking at the same time.
type TickLease interface {
	AcquireLease(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, token string) error
}

type ReminderJob struct {
	processor   ReminderProcessor
	lease       TickLease
	metrics     *metrics.Metrics
	interval    time.Duration
	concurrency int

	cron    *cron.Cron
	running sync.Mutex
	wg      sync.WaitGroup
}

// NewReminderJob builds the scheduler. lease and m may be nil.
func NewReminderJob(
	processor ReminderProcessor,
	lease TickLease,
	m *metrics.Metrics,
	interval time.Duration,
	concurrency int,
) *ReminderJob {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReminderJob{
		processor:   processor,
		lease:       lease,
		metrics:     m,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Start schedules a tick every interval and runs the first one right away.
func (j *ReminderJob) Start() error {
	logger := cronLogger{}
	j.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := j.cron.AddFunc("@every "+j.interval.String(), j.Tick); err != nil {
		return fmt.Errorf("schedule reminder tick: %w", err)
	}
	j.cron.Start()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.Tick()
	}()

	log.Info().
		Dur("interval", j.interval).
		Int("concurrency", j.concurrency).
		Msg("reminder job started")
	return nil
}

// Stop prevents new ticks and waits for the one in flight, if any.
func (j *ReminderJob) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		if j.cron != nil {
			<-j.cron.Stop().Done()
		}
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("reminder job stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reminder job did not stop: %w", ctx.Err())
	}
}

// Tick runs one pass over all active subscriptions. Overlapping calls
// return immediately.
func (j *ReminderJob) Tick() {
	if !j.running.TryLock() {
		log.Debug().Msg("previous reminder tick still running")
		return
	}
	defer j.running.Unlock()

	// Shutdown does not cancel a tick; it is bounded by its own timeout.
	ctx, cancel := context.WithTimeout(context.Background(), j.tickTimeout())
	defer cancel()

	start := time.Now()
	result := j.tick(ctx)
	j.metrics.ObserveTick(result, time.Since(start))
}

func (j *ReminderJob) tickTimeout() time.Duration {
	if j.interval > minTickTimeout {
		return j.interval
	}
	return minTickTimeout
}

func (j *ReminderJob) tick(ctx context.Context) string {
	if j.lease != nil {
		release, ok := j.acquire(ctx)
		if !ok {
			return TickSkipped
		}
		defer release()
	}

	due, err := j.processor.Candidates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load subscriptions, retrying next tick")
		return TickStoreError
	}

	var t tally
	var g errgroup.Group
	g.SetLimit(j.concurrency)
	for i, sub := range due {
		// Subscriptions not started within the budget wait for the next tick.
		if ctx.Err() != nil {
			t.postpone(len(due) - i)
			break
		}
		sub := sub
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				t.postpone(1)
				return err
			}
			j.process(ctx, sub, &t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Int("postponed", t.postponed).Msg("reminder tick ran out of time")
	}

	log.Info().
		Int("subscriptions", len(due)).
		Int("reminded", t.counts[service.OutcomeReminded]).
		Int("expired", t.counts[service.OutcomeExpired]).
		Int("failed", t.failed).
		Int("postponed", t.postponed).
		Msg("reminder tick finished")

	if t.failed > 0 || t.postponed > 0 {
		return TickPartial
	}
	return TickOK
}

// leaseTTL covers the longest a tick can run.
func (j *ReminderJob) leaseTTL() time.Duration {
	return j.tickTimeout() + config.TickLeaseMargin
}

// acquire takes the tick lease. A Redis outage must not stop reminders, so
// the tick then runs without the lease.
func (j *ReminderJob) acquire(ctx context.Context) (func(), bool) {
	noop := func() {}

	token, err := util.GenerateToken()
	if err != nil {
		log.Warn().Err(err).Msg("failed to generate lease token, ticking without lease")
		return noop, true
	}

	ok, err := j.lease.AcquireLease(ctx, redisclient.TickLeaseKey, token, j.leaseTTL())
	if err != nil {
		log.Warn().Err(err).Msg("tick lease unavailable, ticking without lease")
		return noop, true
	}
	if !ok {
		log.Debug().Msg("another replica holds the tick lease")
		return noop, false
	}

	return func() {
		if err := j.lease.ReleaseLease(context.WithoutCancel(ctx), redisclient.TickLeaseKey, token); err != nil {
			log.Warn().Err(err).Msg("failed to release tick lease")
		}
	}, true
}

func (j *ReminderJob) process(ctx context.Context, sub model.DueSubscription, t *tally) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("subscriptionId", sub.ID).
				Msg("panic while processing subscription")
			t.add(service.OutcomeNone, true)
		}
	}()

	outcome, err := j.processor.Process(ctx, sub)
	if err != nil {
		log.Error().
			Err(err).
			Str("subscriptionId", sub.ID).
			Str("outcome", string(outcome)).
			Msg("failed to process subscription")
	}
	t.add(outcome, err != nil)
}

type tally struct {
	mu        sync.Mutex
	counts    map[service.Outcome]int
	failed    int
	postponed int
}

func (t *tally) postpone(n int) {
	t.mu.Lock()
	t.postponed += n
	t.mu.Unlock()
}

func (t *tally) add(outcome service.Outcome, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = make(map[service.Outcome]int)
	}
	t.counts[outcome]++
	if failed {
		t.failed++
	}
}

// cronLogger routes scheduler messages through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
