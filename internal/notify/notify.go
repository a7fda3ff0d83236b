// Package notify defines the outbound notification channel and the action
// tokens that come back when a recipient presses a button.
package notify

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
)

// Action is a button attached to a notification. Token is echoed back
// verbatim when the recipient selects it.
type Action struct {
	Label string
	Token string
}

type Notifier interface {
	Send(ctx context.Context, recipientID int64, text string, actions ...Action) error
}

const (
	TokenPayDone      = "pay_done"
	tokenConfirmClaim = "pay_confirm"
	tokenRejectClaim  = "pay_reject"
)

type TokenKind string

const (
	KindUnknown      TokenKind = ""
	KindPayDone      TokenKind = "pay_done"
	KindConfirmClaim TokenKind = "confirm"
	KindRejectClaim  TokenKind = "reject"
)

func PayDoneAction() Action {
	return Action{Label: "✅ I paid", Token: TokenPayDone}
}

func ClaimActions(claimID string) []Action {
	return []Action{
		{Label: "✅ Confirm", Token: tokenConfirmClaim + ":" + claimID},
		{Label: "❌ Reject", Token: tokenRejectClaim + ":" + claimID},
	}
}

// ParseToken splits a callback token into its kind and the identifier it
// refers to, if any.
func ParseToken(token string) (TokenKind, string) {
	if token == TokenPayDone {
		return KindPayDone, ""
	}
	prefix, id, ok := strings.Cut(token, ":")
	if !ok || id == "" {
		return KindUnknown, ""
	}
	switch prefix {
	case tokenConfirmClaim:
		return KindConfirmClaim, id
	case tokenRejectClaim:
		return KindRejectClaim, id
	}
	return KindUnknown, ""
}

type bounded struct {
	next    Notifier
	timeout time.Duration
}

// WithTimeout bounds every Send by timeout. A send that does not finish in
// time, or fails, is reported as a delivery failure.
func WithTimeout(next Notifier, timeout time.Duration) Notifier {
	return &bounded{next: next, timeout: timeout}
}

func (b *bounded) Send(ctx context.Context, recipientID int64, text string, actions ...Action) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- b.next.Send(ctx, recipientID, text, actions...)
	}()

	select {
	case err := <-done:
		if err != nil {
			return apperrors.DeliveryFailure(err)
		}
		return nil
	case <-ctx.Done():
		return apperrors.DeliveryFailure(ctx.Err())
	}
}
