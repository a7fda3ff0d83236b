package middleware

import (
	"net/http"
	"strings"

	"github.com/Yukky887/ReminderBot/internal/audit"
	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/httputil"
	"github.com/Yukky887/ReminderBot/internal/util"
)

// AdminKeyMiddleware guards the admin API with a single bearer key whose
// bcrypt hash is configured.
type AdminKeyMiddleware struct {
	keyHash string
	check   func(key, hash string) bool
}

func NewAdminKeyMiddleware(keyHash string) *AdminKeyMiddleware {
	return &AdminKeyMiddleware{
		keyHash: keyHash,
		check:   util.CheckPasswordHash,
	}
}

func (m *AdminKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractToken(r)
		if key == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		if m.keyHash == "" || !m.check(key, m.keyHash) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken reads the bearer header. The query parameter exists for
// EventSource clients, which cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
