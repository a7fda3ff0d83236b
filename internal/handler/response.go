package handler

import (
	"net/http"

	"github.com/Yukky887/ReminderBot/internal/httputil"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

type changeResponse struct {
	Account        *model.Account      `json:"account"`
	Subscription   *model.Subscription `json:"subscription"`
	Created        bool                `json:"created"`
	TargetNotified bool                `json:"targetNotified"`
}

func newChangeResponse(r *service.ChangeResult) changeResponse {
	return changeResponse{
		Account:        r.Account,
		Subscription:   r.Subscription,
		Created:        r.Created,
		TargetNotified: r.TargetNotified,
	}
}

type resolveResponse struct {
	Claim        *model.PaymentClaim `json:"claim"`
	Account      *model.Account      `json:"account"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
	UserNotified bool                `json:"userNotified"`
}

func newResolveResponse(r *service.ResolveClaimResult) resolveResponse {
	return resolveResponse{
		Claim:        r.Claim,
		Account:      r.Account,
		Subscription: r.Subscription,
		UserNotified: r.UserNotified,
	}
}
