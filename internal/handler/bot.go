package handler

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/audit"
	"github.com/Yukky887/ReminderBot/internal/config"
	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/service"
	"github.com/Yukky887/ReminderBot/internal/telegram"
)

type AccountOps interface {
	Register(ctx context.Context, telegramID int64, username string) (*model.Account, error)
	Status(ctx context.Context, telegramID int64) (*service.StatusResult, error)
	StatusText(r *service.StatusResult) string
}

type ClaimOps interface {
	Submit(ctx context.Context, telegramID int64) (*service.SubmitClaimResult, error)
	Resolve(ctx context.Context, claimID string, decision model.ClaimDecision, actorID int64) (*service.ResolveClaimResult, error)
	ListRecent(ctx context.Context, actorID int64, limit, offset int) ([]model.ClaimWithAccount, error)
}

type SubscriptionOps interface {
	Activate(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error)
	SetWaiting(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error)
	Suspend(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error)
	SetPaymentDate(ctx context.Context, targetID int64, days int, actorID int64) (*service.ChangeResult, error)
	SendPayButton(ctx context.Context, targetID, actorID int64) error
	ListAccounts(ctx context.Context, actorID int64, limit, offset int) ([]model.AccountSummary, error)
	Find(ctx context.Context, actorID int64, query string, limit int) ([]model.Account, error)
}

type PayTapLimiter interface {
	AllowPayTap(ctx context.Context, telegramID int64) bool
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	notify.Notifier
	AnswerCallback(ctx context.Context, callbackID, text string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
}

// BotHandler turns chat commands and button presses into service calls.
type BotHandler struct {
	accounts AccountOps
	claims   ClaimOps
	subs     SubscriptionOps
	limiter  PayTapLimiter
	out      Messenger
	adminID  int64
	loc      *time.Location
}

func NewBotHandler(
	accounts AccountOps,
	claims ClaimOps,
	subs SubscriptionOps,
	limiter PayTapLimiter,
	out Messenger,
	adminID int64,
	loc *time.Location,
) *BotHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BotHandler{
		accounts: accounts,
		claims:   claims,
		subs:     subs,
		limiter:  limiter,
		out:      out,
		adminID:  adminID,
		loc:      loc,
	}
}

var _ telegram.UpdateHandler = (*BotHandler)(nil)

func (h *BotHandler) Handle(ctx context.Context, u telegram.Update) {
	if u.IsCallback() {
		h.handleCallback(ctx, u)
		return
	}
	h.handleMessage(ctx, u)
}

func (h *BotHandler) isAdmin(u telegram.Update) bool {
	return u.UserID == h.adminID
}

func (h *BotHandler) handleMessage(ctx context.Context, u telegram.Update) {
	cmd := parseCommand(u.Text)

	if cmd.AdminOnly() && !h.isAdmin(u) {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventDeniedCommand,
			ActorID: u.UserID,
			Details: map[string]interface{}{"command": cmd.Name},
		})
		h.reply(ctx, u.ChatID, apperrors.UserMessage(apperrors.NotAuthorized()))
		return
	}

	switch cmd.Name {
	case CmdStart:
		h.start(ctx, u)
	case CmdStatus:
		h.status(ctx, u)
	case CmdPay:
		h.pay(ctx, u)
	case CmdHelp:
		h.reply(ctx, u.ChatID, h.helpText(u))
	case CmdActivate:
		h.activate(ctx, u, cmd)
	case CmdUsers:
		h.listUsers(ctx, u)
	case CmdPayments:
		h.listPayments(ctx, u)
	case CmdFind:
		h.find(ctx, u, cmd)
	case CmdSetWaiting:
		h.changeStatus(ctx, u, cmd, h.subs.SetWaiting)
	case CmdSuspend:
		h.changeStatus(ctx, u, cmd, h.subs.Suspend)
	case CmdSetDate:
		h.setDate(ctx, u, cmd)
	case CmdSendPayButton:
		h.sendPayButton(ctx, u, cmd)
	default:
		h.reply(ctx, u.ChatID, "Unknown command. Send /help for the list.")
	}
}

func (h *BotHandler) start(ctx context.Context, u telegram.Update) {
	if _, err := h.accounts.Register(ctx, u.UserID, u.Username); err != nil {
		h.replyError(ctx, u, err)
		return
	}

	if h.isAdmin(u) {
		h.reply(ctx, u.ChatID, "👋 Welcome, administrator.\n\n"+adminHelp)
		return
	}

	result, err := h.accounts.Status(ctx, u.UserID)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, "👋 Welcome!\n\n"+h.accounts.StatusText(result), payActions(result)...)
}

func (h *BotHandler) status(ctx context.Context, u telegram.Update) {
	result, err := h.accounts.Status(ctx, u.UserID)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, h.accounts.StatusText(result), payActions(result)...)
}

// payActions offers the pay button where a claim can make sense.
func payActions(r *service.StatusResult) []notify.Action {
	if r.Subscription == nil {
		return nil
	}
	switch r.Status {
	case model.SubscriptionActive, model.SubscriptionWaiting:
		return []notify.Action{notify.PayDoneAction()}
	}
	return nil
}

func (h *BotHandler) pay(ctx context.Context, u telegram.Update) {
	text, err := h.submitClaim(ctx, u.UserID)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, text)
}

func (h *BotHandler) submitClaim(ctx context.Context, telegramID int64) (string, error) {
	if h.limiter != nil && !h.limiter.AllowPayTap(ctx, telegramID) {
		return "", apperrors.RateLimitExceeded()
	}
	result, err := h.claims.Submit(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if !result.AdminNotified {
		// The claim is stored; the administrator finds it in /payments.
		log.Warn().Int64("telegramId", telegramID).Msg("claim recorded but administrator not notified")
		return claimRecordedText, nil
	}
	return claimSentText, nil
}

func (h *BotHandler) activate(ctx context.Context, u telegram.Update, cmd Command) {
	target := u.UserID
	if len(cmd.Args) > 0 {
		id, ok := cmd.TargetID()
		if !ok {
			h.reply(ctx, u.ChatID, "Usage: /activate [user id]")
			return
		}
		target = id
	}

	result, err := h.subs.Activate(ctx, target, u.UserID)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, activationText(result, h.loc))
}

func (h *BotHandler) listUsers(ctx context.Context, u telegram.Update) {
	accounts, err := h.subs.ListAccounts(ctx, u.UserID, config.AdminUsersLimit, 0)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, usersText(accounts, h.loc))
}

func (h *BotHandler) listPayments(ctx context.Context, u telegram.Update) {
	claims, err := h.claims.ListRecent(ctx, u.UserID, config.AdminClaimsLimit, 0)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, claimsText(claims, h.loc))
}

func (h *BotHandler) find(ctx context.Context, u telegram.Update, cmd Command) {
	if len(cmd.Args) == 0 {
		h.reply(ctx, u.ChatID, "Usage: /find <user id or username>")
		return
	}

	accounts, err := h.subs.Find(ctx, u.UserID, strings.Join(cmd.Args, " "), config.AdminFindLimit)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, foundText(accounts))
}

type statusChange func(ctx context.Context, targetID, actorID int64) (*service.ChangeResult, error)

func (h *BotHandler) changeStatus(ctx context.Context, u telegram.Update, cmd Command, change statusChange) {
	target, ok := cmd.TargetID()
	if !ok {
		h.reply(ctx, u.ChatID, "Usage: /"+cmd.Name+" <user id>")
		return
	}

	result, err := change(ctx, target, u.UserID)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, changeText(result, h.loc))
}

func (h *BotHandler) setDate(ctx context.Context, u telegram.Update, cmd Command) {
	target, okTarget := cmd.TargetID()
	days, okDays := cmd.IntArg(1)
	if !okTarget || !okDays {
		h.reply(ctx, u.ChatID, "Usage: /set_date <user id> <days from now>")
		return
	}

	result, err := h.subs.SetPaymentDate(ctx, target, days, u.UserID)
	if err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, changeText(result, h.loc))
}

func (h *BotHandler) sendPayButton(ctx context.Context, u telegram.Update, cmd Command) {
	target, ok := cmd.TargetID()
	if !ok {
		h.reply(ctx, u.ChatID, "Usage: /send_pay_button <user id>")
		return
	}

	if err := h.subs.SendPayButton(ctx, target, u.UserID); err != nil {
		h.replyError(ctx, u, err)
		return
	}
	h.reply(ctx, u.ChatID, "✅ Pay button sent.")
}

func (h *BotHandler) handleCallback(ctx context.Context, u telegram.Update) {
	kind, claimID := notify.ParseToken(u.CallbackData)

	switch kind {
	case notify.KindPayDone:
		text, err := h.submitClaim(ctx, u.UserID)
		if err != nil {
			h.answer(ctx, u, apperrors.UserMessage(err))
			return
		}
		if text == claimSentText {
			h.answer(ctx, u, "Sent to the administrator")
		} else {
			h.answer(ctx, u, "Payment recorded")
		}
		h.reply(ctx, u.ChatID, text)

	case notify.KindConfirmClaim:
		h.resolve(ctx, u, claimID, model.DecisionConfirm)

	case notify.KindRejectClaim:
		h.resolve(ctx, u, claimID, model.DecisionReject)

	default:
		log.Warn().
			Int64("userId", u.UserID).
			Str("data", u.CallbackData).
			Msg("unknown callback data")
		h.answer(ctx, u, "Unknown action")
	}
}

func (h *BotHandler) resolve(ctx context.Context, u telegram.Update, claimID string, decision model.ClaimDecision) {
	result, err := h.claims.Resolve(ctx, claimID, decision, u.UserID)
	if err != nil {
		if h.isAdmin(u) {
			h.answer(ctx, u, apperrors.AdminMessage(err, config.AdminErrorExcerpt))
		} else {
			h.answer(ctx, u, apperrors.UserMessage(err))
		}
		// Drop the buttons of a claim someone already resolved.
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeAlreadyResolved {
			h.edit(ctx, u, "ℹ️ "+appErr.Message)
		}
		return
	}

	h.answer(ctx, u, "Done")
	h.edit(ctx, u, resolutionText(result, h.loc))
	if !result.UserNotified {
		h.reply(ctx, u.ChatID, "⚠️ The user could not be notified about this decision.")
	}
}

func (h *BotHandler) helpText(u telegram.Update) string {
	if h.isAdmin(u) {
		return userHelp + "\n\n" + adminHelp
	}
	return userHelp
}

func (h *BotHandler) replyError(ctx context.Context, u telegram.Update, err error) {
	if !apperrors.IsAppError(err) || apperrors.IsTransient(err) {
		log.Error().Err(err).Int64("userId", u.UserID).Msg("command failed")
	}

	if h.isAdmin(u) {
		h.reply(ctx, u.ChatID, apperrors.AdminMessage(err, config.AdminErrorExcerpt))
		return
	}
	h.reply(ctx, u.ChatID, apperrors.UserMessage(err))
}

func (h *BotHandler) reply(ctx context.Context, chatID int64, text string, actions ...notify.Action) {
	if err := h.out.Send(ctx, chatID, text, actions...); err != nil {
		log.Warn().Err(err).Int64("chatId", chatID).Msg("failed to send reply")
	}
}

func (h *BotHandler) answer(ctx context.Context, u telegram.Update, text string) {
	if err := h.out.AnswerCallback(ctx, u.CallbackID, apperrors.Truncate(text, callbackTextLimit)); err != nil {
		log.Warn().Err(err).Int64("userId", u.UserID).Msg("failed to answer callback")
	}
}

func (h *BotHandler) edit(ctx context.Context, u telegram.Update, text string) {
	if u.MessageID == 0 {
		return
	}
	if err := h.out.EditText(ctx, u.ChatID, u.MessageID, text); err != nil {
		log.Warn().Err(err).Int64("chatId", u.ChatID).Msg("failed to edit message")
	}
}
