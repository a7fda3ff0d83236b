package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Yukky887/ReminderBot/internal/config"
	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/httputil"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/util"
)

// AdminHandler exposes the administrator's chat operations over HTTP. The
// caller is authenticated by key upstream and acts as the configured
// administrator.
type AdminHandler struct {
	accounts AccountOps
	claims   ClaimOps
	subs     SubscriptionOps
	events   http.Handler
	adminID  int64
}

func NewAdminHandler(accounts AccountOps, claims ClaimOps, subs SubscriptionOps, events http.Handler, adminID int64) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		claims:   claims,
		subs:     subs,
		events:   events,
		adminID:  adminID,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Get("/accounts", h.ListAccounts)
		r.Get("/accounts/{telegramId}", h.GetAccount)
		r.Post("/accounts/{telegramId}/activate", h.Activate)
		r.Post("/accounts/{telegramId}/waiting", h.SetWaiting)
		r.Post("/accounts/{telegramId}/suspend", h.Suspend)
		r.Post("/accounts/{telegramId}/payment-date", h.SetPaymentDate)

		r.Get("/claims", h.ListClaims)
		r.Post("/claims/{id}/confirm", h.ConfirmClaim)
		r.Post("/claims/{id}/reject", h.RejectClaim)
	})

	// The event stream outlives any request timeout.
	if h.events != nil {
		r.Get("/events", h.events.ServeHTTP)
	}

	return r
}

func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	accounts, err := h.subs.ListAccounts(r.Context(), h.adminID, p.Limit, p.Offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": accounts,
		"total": len(accounts),
	})
}

func (h *AdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	target, ok := telegramIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.accounts.Status(r.Context(), target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":      result.Account,
		"subscription": result.Subscription,
		"status":       result.Status,
		"daysLeft":     result.DaysLeft,
	})
}

func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	target, ok := telegramIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.subs.Activate(r.Context(), target, h.adminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, newChangeResponse(result))
}

func (h *AdminHandler) SetWaiting(w http.ResponseWriter, r *http.Request) {
	target, ok := telegramIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.subs.SetWaiting(r.Context(), target, h.adminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newChangeResponse(result))
}

func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	target, ok := telegramIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.subs.Suspend(r.Context(), target, h.adminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newChangeResponse(result))
}

func (h *AdminHandler) SetPaymentDate(w http.ResponseWriter, r *http.Request) {
	target, ok := telegramIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Days *int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Days == nil {
		httputil.WriteError(w, apperrors.ValidationError("days is required"))
		return
	}

	result, err := h.subs.SetPaymentDate(r.Context(), target, *req.Days, h.adminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newChangeResponse(result))
}

func (h *AdminHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	claims, err := h.claims.ListRecent(r.Context(), h.adminID, p.Limit, p.Offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": claims,
		"total": len(claims),
	})
}

func (h *AdminHandler) ConfirmClaim(w http.ResponseWriter, r *http.Request) {
	h.resolveClaim(w, r, model.DecisionConfirm)
}

func (h *AdminHandler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	h.resolveClaim(w, r, model.DecisionReject)
}

func (h *AdminHandler) resolveClaim(w http.ResponseWriter, r *http.Request, decision model.ClaimDecision) {
	result, err := h.claims.Resolve(r.Context(), chi.URLParam(r, "id"), decision, h.adminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResolveResponse(result))
}

func telegramIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := util.ParseTelegramID(chi.URLParam(r, "telegramId"))
	if !ok {
		httputil.WriteError(w, apperrors.InvalidInput("telegramId", "must be a positive number"))
		return 0, false
	}
	return id, true
}
