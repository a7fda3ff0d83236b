package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/audit"
	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/sse"
	"github.com/Yukky887/ReminderBot/internal/util"
)

type ClaimService struct {
	d Deps
}

func NewClaimService(d Deps) *ClaimService {
	return &ClaimService{d: d}
}

type SubmitClaimResult struct {
	Claim         *model.PaymentClaim
	AdminNotified bool
}

// Submit records that the account owner says they paid and asks the
// administrator to confirm it.
func (s *ClaimService) Submit(ctx context.Context, telegramID int64) (*SubmitClaimResult, error) {
	account, err := s.d.Accounts.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, storeErr(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return nil, apperrors.NotFound("Account")
	}

	now := s.d.now()
	var (
		claim *model.PaymentClaim
		sub   *model.Subscription
	)

	// The account row lock serializes submissions of one account, so the
	// duplicate check below cannot race with a parallel tap.
	err = s.d.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if _, err = s.d.Accounts.WithTx(tx).LockByID(ctx, account.ID); err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		sub, err = s.d.Subscriptions.WithTx(tx).FindByAccountID(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("find subscription: %w", err)
		}
		if sub == nil {
			return apperrors.NoSubscription()
		}
		if !s.d.Policy.CanClaim(sub.Status) {
			return apperrors.NotActive(string(sub.Status))
		}

		claims := s.d.Claims.WithTx(tx)
		count, err := claims.CountRequestedSince(ctx, account.ID, s.d.Policy.StartOfDay(now))
		if err != nil {
			return fmt.Errorf("count claims: %w", err)
		}
		if count > 0 {
			return apperrors.DuplicateClaim()
		}

		claim, err = claims.Create(ctx, account.ID, now)
		if err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.d.Metrics.IncClaim(string(model.ClaimRequested))
	log.Info().
		Str("claimId", claim.ID).
		Str("accountId", account.ID).
		Int64("telegramId", telegramID).
		Msg("payment claim submitted")

	result := &SubmitClaimResult{Claim: claim}
	result.AdminNotified = s.d.send(ctx, s.d.AdminID,
		claimAdminText(account, sub, s.d.Policy.Location),
		notify.ClaimActions(claim.ID)...,
	)
	s.d.publish(ctx, sse.EventClaimSubmitted, claim)

	return result, nil
}

type ResolveClaimResult struct {
	Claim   *model.PaymentClaim
	Account *model.Account
	// Subscription is the renewed subscription; nil on reject.
	Subscription *model.Subscription
	UserNotified bool
}

// Resolve applies the administrator's decision to a requested claim. A
// confirmed claim renews the account's subscription in the same
// transaction, so a claim can never renew twice.
func (s *ClaimService) Resolve(ctx context.Context, claimID string, decision model.ClaimDecision, actorID int64) (*ResolveClaimResult, error) {
	if err := s.d.requireAdmin(ctx, actorID, "resolve_claim"); err != nil {
		return nil, err
	}
	if decision != model.DecisionConfirm && decision != model.DecisionReject {
		return nil, apperrors.InvalidInput("decision", fmt.Sprintf("unknown decision %q", decision))
	}
	if !util.IsValidUUID(claimID) {
		return nil, apperrors.ClaimNotFound()
	}

	now := s.d.now()
	result := &ResolveClaimResult{}

	err := s.d.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		claims := s.d.Claims.WithTx(tx)

		claim, err := claims.LockByID(ctx, claimID)
		if err != nil {
			return fmt.Errorf("lock claim: %w", err)
		}
		if claim == nil {
			return apperrors.ClaimNotFound()
		}
		if claim.Status != model.ClaimRequested {
			return apperrors.AlreadyResolved(string(claim.Status))
		}

		resolved, err := claims.Resolve(ctx, claimID, model.ResolveClaimParams{
			Status:     decision.Status(),
			ResolvedBy: actorID,
			ResolvedAt: now,
		})
		if err != nil {
			return fmt.Errorf("resolve claim: %w", err)
		}
		if resolved == nil {
			return apperrors.InvalidState("Payment claim changed while it was being resolved")
		}
		result.Claim = resolved

		account, err := s.d.Accounts.WithTx(tx).FindByID(ctx, claim.AccountID)
		if err != nil {
			return fmt.Errorf("find account: %w", err)
		}
		if account == nil {
			return apperrors.NotFound("Account")
		}
		result.Account = account

		if decision == model.DecisionReject {
			return nil
		}

		sub, err := renew(ctx, s.d, tx, account.ID, now)
		if err != nil {
			return err
		}
		result.Subscription = sub
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.d.Metrics.IncClaim(string(result.Claim.Status))

	eventType := audit.EventClaimRejected
	if decision == model.DecisionConfirm {
		eventType = audit.EventClaimConfirmed
	}
	details := map[string]interface{}{"claimId": result.Claim.ID}
	if result.Subscription != nil {
		details["nextPayment"] = result.Subscription.NextPayment
	}
	audit.Log(ctx, audit.Event{
		Type:      eventType,
		ActorID:   actorID,
		TargetID:  result.Account.TelegramID,
		AccountID: result.Account.ID,
		Details:   details,
	})

	text := claimRejectedText()
	if result.Subscription != nil {
		text = claimConfirmedText(result.Subscription.NextPayment, s.d.Policy.Location)
	}
	result.UserNotified = s.d.send(ctx, result.Account.TelegramID, text)
	s.d.publish(ctx, sse.EventClaimResolved, result.Claim)

	return result, nil
}

func (s *ClaimService) ListRecent(ctx context.Context, actorID int64, limit, offset int) ([]model.ClaimWithAccount, error) {
	if err := s.d.requireAdmin(ctx, actorID, "list_claims"); err != nil {
		return nil, err
	}

	claims, err := s.d.Claims.FindRecent(ctx, limit, offset)
	if err != nil {
		return nil, storeErr(fmt.Errorf("find recent claims: %w", err))
	}
	return claims, nil
}

// renew creates the account's subscription or extends the existing one by a
// period. It must run inside tx.
func renew(ctx context.Context, d Deps, tx *sqlx.Tx, accountID string, now time.Time) (*model.Subscription, error) {
	subs := d.Subscriptions.WithTx(tx)

	sub, err := subs.LockByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lock subscription: %w", err)
	}

	if sub == nil {
		created, err := subs.Create(ctx, d.Policy.NewSubscription(accountID, now))
		if err != nil {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		return created, nil
	}

	d.Policy.Extend(sub, now)
	saved, err := subs.Save(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	return saved, nil
}
