package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/model"
)

type AccountService struct {
	d Deps
}

func NewAccountService(d Deps) *AccountService {
	return &AccountService{d: d}
}

// Register records first contact, or refreshes the username on a later one.
func (s *AccountService) Register(ctx context.Context, telegramID int64, username string) (*model.Account, error) {
	if telegramID <= 0 {
		return nil, apperrors.InvalidInput("user id", "must be a positive number")
	}

	var handle *string
	if u := strings.TrimPrefix(strings.TrimSpace(username), "@"); u != "" {
		handle = &u
	}

	account, err := s.d.Accounts.Upsert(ctx, model.UpsertAccountParams{
		TelegramID: telegramID,
		Username:   handle,
	})
	if err != nil {
		return nil, storeErr(fmt.Errorf("upsert account: %w", err))
	}

	log.Debug().
		Int64("telegramId", telegramID).
		Str("accountId", account.ID).
		Msg("account registered")

	return account, nil
}

type StatusResult struct {
	Account      *model.Account
	Subscription *model.Subscription
	// Status is what the scheduler will make of the subscription, so an
	// active one past its due date already reads as expired.
	Status   model.SubscriptionStatus
	DaysLeft int
}

func (s *AccountService) Status(ctx context.Context, telegramID int64) (*StatusResult, error) {
	account, err := s.d.Accounts.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, storeErr(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return nil, apperrors.NotFound("Account")
	}

	sub, err := s.d.Subscriptions.FindByAccountID(ctx, account.ID)
	if err != nil {
		return nil, storeErr(fmt.Errorf("find subscription: %w", err))
	}

	result := &StatusResult{Account: account, Subscription: sub}
	if sub != nil {
		decision := s.d.Policy.Decide(*sub, s.d.now())
		result.Status = decision.Status
		result.DaysLeft = decision.DaysLeft
	}
	return result, nil
}

// StatusText renders r for the account owner in the billing time zone.
func (s *AccountService) StatusText(r *StatusResult) string {
	if r.Subscription == nil {
		return "You don't have a subscription yet. Contact the administrator."
	}

	loc := s.d.Policy.Location
	next := r.Subscription.NextPayment
	switch r.Status {
	case model.SubscriptionActive:
		return fmt.Sprintf("📋 Status: active\nNext payment: %s (%d days left)", formatDate(next, loc), r.DaysLeft)
	case model.SubscriptionWaiting:
		return "📋 Status: waiting for payment\nPress /pay once you have paid."
	case model.SubscriptionExpired:
		return fmt.Sprintf("📋 Status: expired since %s\nContact the administrator to renew.", formatDate(next, loc))
	default:
		return fmt.Sprintf("📋 Status: %s", r.Status)
	}
}
