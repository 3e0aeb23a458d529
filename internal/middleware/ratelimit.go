package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"voipgate-backend/internal/cache"
	"voipgate-backend/internal/response"
)

// Registration is stricter than login: it costs an upstream getClients call
// per attempt.
const (
	loginLimit     = 5
	loginWindow    = time.Minute
	registerLimit  = 10
	registerWindow = time.Hour
)

func RateLimitLogin(cacheClient cache.Client) func(http.Handler) http.Handler {
	return rateLimit(cacheClient, "rl:login:", loginLimit, loginWindow)
}

func RateLimitRegister(cacheClient cache.Client) func(http.Handler) http.Handler {
	return rateLimit(cacheClient, "rl:register:", registerLimit, registerWindow)
}

// rateLimit fails open: counter errors (redis down) never block a request.
func rateLimit(cacheClient cache.Client, prefix string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := prefix + clientIP(r)
			count, err := cacheClient.IncrWithTTL(key, window)
			if err == nil && count > limit {
				response.Fail(w, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
