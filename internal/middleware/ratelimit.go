// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/iyunix/go-chatrelay/internal/ratelimit"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ByUser charges authenticated users by id and guests by client IP.
func ByUser(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != 0 {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return ByIP(r)
}

func ByIP(r *http.Request) string {
	return "ip:" + ratelimit.GetClientIP(r)
}

// RateLimitMiddleware rejects requests with 429 once the key's bucket is empty.
func RateLimitMiddleware(limiter *ratelimit.Limiter, name string, key KeyFunc, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := key(r)
			info := limiter.Allow(identifier)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))

			if !info.Allowed {
				retryAfter := int(math.Ceil(info.RetryAfter.Seconds()))
				logger.Warn("rate limited", "limiter", name, "key", identifier, "retry_after", retryAfter)

				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      fmt.Sprintf("Too many requests. Please try again in %d seconds.", retryAfter),
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
