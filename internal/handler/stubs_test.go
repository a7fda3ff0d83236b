package handler

import (
	"context"
	"sync"

	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/service"
)

type stubAccounts struct {
	register func(ctx context.Context, telegramID int64, username string) (*model.Account, error)
	status   func(ctx context.Context, telegramID int64) (*service.StatusResult, error)
}

func (s *stubAccounts) Register(ctx context.Context, telegramID int64, username string) (*model.Account, error) {
	return s.register(ctx, telegramID, username)
}

func (s *stubAccounts) Status(ctx context.Context, telegramID int64) (*service.StatusResult, error) {
	return s.status(ctx, telegramID)
}

func (s *stubAccounts) StatusText(r *service.StatusResult) string {
	return "status: " + string(r.Status)
}

type stubClaims struct {
	submit     func(ctx context.Context, telegramID int64) (*service.SubmitClaimResult, error)
	resolve    func(ctx context.Context, claimID string, decision model.ClaimDecision, actorID int64) (*service.ResolveClaimResult, error)
	listRecent func(ctx context.Context, actorID int64, limit, offset int) ([]model.ClaimWithAccount, error)
}

func (s *stubClaims) Submit(ctx context.Context, telegramID int64) (*service.SubmitClaimResult, error) {
	return s.submit(ctx, telegramID)
}

func (s *stubClaims) Resolve(ctx context.Context, claimID string, decision model.ClaimDecision, actorID int64) (*service.ResolveClaimResult, error) {
	return s.resolve(ctx, claimID, decision, actorID)
}

func (s *stubClaims) ListRecent(ctx context.Context, actorID int64, limit, offset int) ([]model.ClaimWithAccount, error) {
	return s.listRecent(ctx, actorID, limit, offset)
}

type changeFunc func(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error)

type stubSubscriptions struct {
	activate       changeFunc
	setWaiting     changeFunc
	suspend        changeFunc
	setPaymentDate func(ctx context.Context, targetID int64, days int, actorID int64) (*service.ChangeResult, error)
	sendPayButton  func(ctx context.Context, targetID, actorID int64) error
	listAccounts   func(ctx context.Context, actorID int64, limit, offset int) ([]model.AccountSummary, error)
	find           func(ctx context.Context, actorID int64, query string, limit int) ([]model.Account, error)
}

func (s *stubSubscriptions) Activate(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error) {
	return s.activate(ctx, targetID, actorID)
}

func (s *stubSubscriptions) SetWaiting(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error) {
	return s.setWaiting(ctx, targetID, actorID)
}

func (s *stubSubscriptions) Suspend(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error) {
	return s.suspend(ctx, targetID, actorID)
}

func (s *stubSubscriptions) SetPaymentDate(ctx context.Context, targetID int64, days int, actorID int64) (*service.ChangeResult, error) {
	return s.setPaymentDate(ctx, targetID, days, actorID)
}

func (s *stubSubscriptions) SendPayButton(ctx context.Context, targetID, actorID int64) error {
	return s.sendPayButton(ctx, targetID, actorID)
}

func (s *stubSubscriptions) ListAccounts(ctx context.Context, actorID int64, limit, offset int) ([]model.AccountSummary, error) {
	return s.listAccounts(ctx, actorID, limit, offset)
}

func (s *stubSubscriptions) Find(ctx context.Context, actorID int64, query string, limit int) ([]model.Account, error) {
	return s.find(ctx, actorID, query, limit)
}

type stubLimiter struct {
	allow bool
}

func (s stubLimiter) AllowPayTap(ctx context.Context, telegramID int64) bool {
	return s.allow
}

type sentMessage struct {
	chatID  int64
	text    string
	actions []notify.Action
}

type recordingMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	answers []string
	edits   []string
}

func (m *recordingMessenger) Send(ctx context.Context, recipientID int64, text string, actions ...notify.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: recipientID, text: text, actions: actions})
	return nil
}

func (m *recordingMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *recordingMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, text)
	return nil
}

func (m *recordingMessenger) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].text
}
