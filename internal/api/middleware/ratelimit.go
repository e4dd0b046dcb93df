package middleware

import (
	"net/http"

	"statarb/pkg/ratelimit"
)

// RateLimit - общий token bucket на операторский API
//
// Лимит глобальный, не per-client: API обслуживает одного-двух
// операторов, задача - защитить движок от залипшего в цикле скрипта,
// а не честно делить полосу.
func RateLimit(rate, burst float64) func(http.Handler) http.Handler {
	limiter := ratelimit.New(rate, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
