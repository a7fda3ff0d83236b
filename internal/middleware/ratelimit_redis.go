package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/Yukky887/ReminderBot/internal/errors"
	"github.com/Yukky887/ReminderBot/internal/httputil"
)

const apiRateLimitKeyPrefix = "adminapi:"

type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time, error)
}

// IPRateLimitMiddleware limits requests per client address. It runs before
// key verification so guessing the admin key is slow.
type IPRateLimitMiddleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
}

func NewIPRateLimitMiddleware(limiter Limiter, limit int, window time.Duration) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{limiter: limiter, limit: limit, window: window}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		allowed, resetAt, err := m.limiter.CheckLimit(r.Context(), apiRateLimitKeyPrefix+ip, m.limit, m.window)
		if err != nil {
			log.Warn().Err(err).Str("ip", ip).Msg("redis rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP relies on chi's RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
