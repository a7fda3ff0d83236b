package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Yukky887/ReminderBot/internal/clock"
	"github.com/Yukky887/ReminderBot/internal/database"
	"github.com/Yukky887/ReminderBot/internal/lifecycle"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/repository"
	"github.com/Yukky887/ReminderBot/internal/sse"
)

const adminID int64 = 1

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// memStore mimics the conditional writes of the Postgres repositories.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	subs     map[string]model.Subscription // by account id
	claims   map[string]model.PaymentClaim
	listErr  error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]model.Account),
		subs:     make(map[string]model.Subscription),
		claims:   make(map[string]model.PaymentClaim),
	}
}

func (m *memStore) addAccount(telegramID int64, username string) *model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := model.Account{ID: uuid.NewString(), TelegramID: telegramID, CreatedAt: testNow}
	if username != "" {
		a.Username = &username
	}
	m.accounts[a.ID] = a
	return &a
}

func (m *memStore) addSubscription(accountID string, status model.SubscriptionStatus, next time.Time) *model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := model.Subscription{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Status:      status,
		NextPayment: clock.UTC(next),
		PeriodDays:  30,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	m.subs[accountID] = s
	return &s
}

func (m *memStore) subscription(accountID string) (model.Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[accountID]
	return s, ok
}

func (m *memStore) claim(id string) model.PaymentClaim {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[id]
}

func (m *memStore) accountByTelegramID(telegramID int64) *model.Account {
	for _, a := range m.accounts {
		if a.TelegramID == telegramID {
			return &a
		}
	}
	return nil
}

type fakeAccounts struct{ m *memStore }

func (f fakeAccounts) FindByID(_ context.Context, id string) (*model.Account, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	a, ok := f.m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (f fakeAccounts) FindByTelegramID(_ context.Context, telegramID int64) (*model.Account, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return f.m.accountByTelegramID(telegramID), nil
}

func (f fakeAccounts) FindByUsername(_ context.Context, query string, limit int) ([]model.Account, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	result := []model.Account{}
	for _, a := range f.m.accounts {
		if a.Username != nil && strings.Contains(strings.ToLower(*a.Username), strings.ToLower(query)) {
			result = append(result, a)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f fakeAccounts) FindAll(_ context.Context, limit, offset int) ([]model.AccountSummary, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	result := []model.AccountSummary{}
	for _, a := range f.m.accounts {
		summary := model.AccountSummary{Account: a}
		if s, ok := f.m.subs[a.ID]; ok {
			status, next := s.Status, s.NextPayment
			summary.SubscriptionStatus = &status
			summary.NextPayment = &next
		}
		result = append(result, summary)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TelegramID < result[j].TelegramID })
	if offset >= len(result) {
		return []model.AccountSummary{}, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f fakeAccounts) Upsert(_ context.Context, params model.UpsertAccountParams) (*model.Account, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if a := f.m.accountByTelegramID(params.TelegramID); a != nil {
		if params.Username != nil {
			a.Username = params.Username
			f.m.accounts[a.ID] = *a
		}
		return a, nil
	}
	a := model.Account{ID: uuid.NewString(), TelegramID: params.TelegramID, Username: params.Username, CreatedAt: testNow}
	f.m.accounts[a.ID] = a
	return &a, nil
}

func (f fakeAccounts) LockByID(ctx context.Context, id string) (*model.Account, error) {
	return f.FindByID(ctx, id)
}

func (f fakeAccounts) WithTx(*sqlx.Tx) repository.AccountRepository { return f }

type fakeSubscriptions struct{ m *memStore }

func (f fakeSubscriptions) FindByAccountID(_ context.Context, accountID string) (*model.Subscription, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.subs[accountID]
	if !ok {
		return nil, nil
	}
	s.NotifiedHorizons = slices.Clone(s.NotifiedHorizons)
	return &s, nil
}

func (f fakeSubscriptions) LockByAccountID(ctx context.Context, accountID string) (*model.Subscription, error) {
	return f.FindByAccountID(ctx, accountID)
}

func (f fakeSubscriptions) ListByStatus(_ context.Context, statuses ...model.SubscriptionStatus) ([]model.DueSubscription, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.listErr != nil {
		return nil, f.m.listErr
	}
	result := []model.DueSubscription{}
	for accountID, s := range f.m.subs {
		if !slices.Contains(statuses, s.Status) {
			continue
		}
		s.NotifiedHorizons = slices.Clone(s.NotifiedHorizons)
		result = append(result, model.DueSubscription{Subscription: s, TelegramID: f.m.accounts[accountID].TelegramID})
	}
	return result, nil
}

func (f fakeSubscriptions) Create(_ context.Context, params model.CreateSubscriptionParams) (*model.Subscription, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s := model.Subscription{
		ID:               uuid.NewString(),
		AccountID:        params.AccountID,
		Status:           params.Status,
		NextPayment:      clock.UTC(params.NextPayment),
		PeriodDays:       params.PeriodDays,
		NotifiedHorizons: pq.Int64Array{},
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	f.m.subs[params.AccountID] = s
	return &s, nil
}

func (f fakeSubscriptions) Save(_ context.Context, sub *model.Subscription) (*model.Subscription, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s := *sub
	s.NextPayment = clock.UTC(s.NextPayment)
	s.NotifiedHorizons = slices.Clone(s.NotifiedHorizons)
	f.m.subs[s.AccountID] = s
	return &s, nil
}

func (f fakeSubscriptions) find(id string) (model.Subscription, bool) {
	for _, s := range f.m.subs {
		if s.ID == id {
			return s, true
		}
	}
	return model.Subscription{}, false
}

func (f fakeSubscriptions) MarkExpired(ctx context.Context, id string, seen time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.find(id)
	if !ok || s.Status != model.SubscriptionActive || !s.NextPayment.Equal(seen) {
		return false, nil
	}
	s.Status = model.SubscriptionExpired
	f.m.subs[s.AccountID] = s
	return true, nil
}

func (f fakeSubscriptions) MarkReminded(ctx context.Context, id string, seen time.Time, horizon int, sentAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.find(id)
	if !ok || s.Status != model.SubscriptionActive || !s.NextPayment.Equal(seen) {
		return false, nil
	}
	lifecycle.MarkNotified(&s, horizon, sentAt)
	f.m.subs[s.AccountID] = s
	return true, nil
}

func (f fakeSubscriptions) WithTx(*sqlx.Tx) repository.SubscriptionRepository { return f }

type fakeClaims struct{ m *memStore }

func (f fakeClaims) FindByID(_ context.Context, id string) (*model.PaymentClaim, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.claims[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f fakeClaims) LockByID(ctx context.Context, id string) (*model.PaymentClaim, error) {
	return f.FindByID(ctx, id)
}

func (f fakeClaims) Create(_ context.Context, accountID string, createdAt time.Time) (*model.PaymentClaim, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c := model.PaymentClaim{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Status:    model.ClaimRequested,
		CreatedAt: clock.UTC(createdAt),
	}
	f.m.claims[c.ID] = c
	return &c, nil
}

func (f fakeClaims) CountRequestedSince(_ context.Context, accountID string, since time.Time) (int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	count := 0
	for _, c := range f.m.claims {
		if c.AccountID == accountID && c.Status == model.ClaimRequested && !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f fakeClaims) Resolve(_ context.Context, id string, params model.ResolveClaimParams) (*model.PaymentClaim, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.claims[id]
	if !ok || c.Status != model.ClaimRequested {
		return nil, nil
	}
	resolvedAt := clock.UTC(params.ResolvedAt)
	resolvedBy := params.ResolvedBy
	c.Status = params.Status
	c.ResolvedAt = &resolvedAt
	c.ResolvedBy = &resolvedBy
	f.m.claims[id] = c
	return &c, nil
}

func (f fakeClaims) FindRecent(_ context.Context, limit, offset int) ([]model.ClaimWithAccount, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	result := []model.ClaimWithAccount{}
	for _, c := range f.m.claims {
		a := f.m.accounts[c.AccountID]
		result = append(result, model.ClaimWithAccount{PaymentClaim: c, TelegramID: a.TelegramID, Username: a.Username})
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f fakeClaims) WithTx(*sqlx.Tx) repository.ClaimRepository { return f }

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type sentMessage struct {
	to      int64
	text    string
	actions []notify.Action
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[int64]error
}

func (n *fakeNotifier) Send(_ context.Context, recipientID int64, text string, actions ...notify.Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail[recipientID]; err != nil {
		return err
	}
	n.sent = append(n.sent, sentMessage{to: recipientID, text: text, actions: actions})
	return nil
}

func (n *fakeNotifier) failFor(recipientID int64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail == nil {
		n.fail = make(map[int64]error)
	}
	n.fail[recipientID] = err
}

func (n *fakeNotifier) messagesTo(recipientID int64) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var result []sentMessage
	for _, m := range n.sent {
		if m.to == recipientID {
			result = append(result, m)
		}
	}
	return result
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(_ context.Context, topic string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, topic+":"+event.Type)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

type harness struct {
	store    *memStore
	notifier *fakeNotifier
	events   *fakePublisher
	clock    *clock.Fixed
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:    newMemStore(),
		notifier: &fakeNotifier{},
		events:   &fakePublisher{},
		clock:    clock.NewFixed(testNow),
	}
	h.deps = Deps{
		DB:            fakeTx{},
		Accounts:      fakeAccounts{h.store},
		Subscriptions: fakeSubscriptions{h.store},
		Claims:        fakeClaims{h.store},
		Notifier:      h.notifier,
		Events:        h.events,
		Clock:         h.clock,
		Policy: lifecycle.Policy{
			Horizons:      []int{3, 1, 0},
			PeriodDays:    30,
			ClaimStatuses: []model.SubscriptionStatus{model.SubscriptionActive, model.SubscriptionWaiting},
			Location:      time.UTC,
		},
		AdminID: adminID,
	}
	return h
}
