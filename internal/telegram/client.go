// Package telegram adapts the Bot API to the notification channel and feeds
// inbound updates to a handler.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/config"
	"github.com/Yukky887/ReminderBot/internal/notify"
)

// Update is the part of an inbound event the bot acts on. Exactly one of
// Text and CallbackData is set.
type Update struct {
	UserID    int64
	ChatID    int64
	Username  string
	Text      string
	MessageID int

	CallbackID   string
	CallbackData string
}

func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}

type UpdateHandler interface {
	Handle(ctx context.Context, update Update)
}

type Client struct {
	bot *tgbotapi.BotAPI
}

func NewClient(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: config.TelegramHTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}

	log.Info().Str("username", bot.Self.UserName).Msg("authorized on telegram")
	return &Client{bot: bot}, nil
}

// Send delivers text to a private chat. The Bot API call cannot be
// cancelled; wrap the client with notify.WithTimeout to bound it.
func (c *Client) Send(ctx context.Context, recipientID int64, text string, actions ...notify.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Send(newMessage(recipientID, text, actions)); err != nil {
		return fmt.Errorf("send message to %d: %w", recipientID, err)
	}
	return nil
}

// AnswerCallback stops the client-side spinner on a pressed button.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// EditText replaces the text of an earlier message and drops its buttons.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if _, err := c.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Run long-polls for updates and handles each in its own goroutine until
// ctx is cancelled. It returns once every started handler has finished.
func (c *Client) Run(ctx context.Context, handler UpdateHandler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = config.TelegramPollTimeoutSeconds
	updates := c.bot.GetUpdatesChan(cfg)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			log.Info().Msg("stopped receiving telegram updates")
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			update, ok := fromAPI(raw)
			if !ok {
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatch(ctx, handler, update)
			}()
		}
	}
}

// dispatch gives every update its own deadline, detached from polling so
// shutdown does not cut a command short.
func dispatch(ctx context.Context, handler UpdateHandler, update Update) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.UpdateHandleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Int64("userId", update.UserID).
				Msg("panic while handling update")
		}
	}()

	handler.Handle(ctx, update)
}

func fromAPI(raw tgbotapi.Update) (Update, bool) {
	switch {
	case raw.CallbackQuery != nil:
		q := raw.CallbackQuery
		if q.From == nil {
			return Update{}, false
		}
		u := Update{
			UserID:       q.From.ID,
			ChatID:       q.From.ID,
			Username:     q.From.UserName,
			CallbackID:   q.ID,
			CallbackData: q.Data,
		}
		if q.Message != nil {
			u.MessageID = q.Message.MessageID
			if q.Message.Chat != nil {
				u.ChatID = q.Message.Chat.ID
			}
		}
		return u, true

	case raw.Message != nil:
		m := raw.Message
		if m.From == nil || m.Chat == nil || m.Text == "" {
			return Update{}, false
		}
		return Update{
			UserID:    m.From.ID,
			ChatID:    m.Chat.ID,
			Username:  m.From.UserName,
			Text:      m.Text,
			MessageID: m.MessageID,
		}, true
	}
	return Update{}, false
}

func newMessage(chatID int64, text string, actions []notify.Action) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(actions) == 0 {
		return msg
	}

	row := make([]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Token))
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	return msg
}
