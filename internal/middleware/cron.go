package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/kaskelas/backend/internal/services"
)

const CronKeyHeader = "X-CloudScheduler-Key"

// CronKey admits external scheduler calls carrying the shared secret.
// An empty secret rejects every call.
func CronKey(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(CronKeyHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				slog.Warn("unauthorized cron request", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				services.SendStatusError(w, http.StatusUnauthorized, services.CodeUnauthorized, "Invalid or missing cron authentication")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
