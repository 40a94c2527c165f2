package ratelimiter

import (
	"math"
	"net/http"
	"strconv"

	"github.com/pitabwire/util"

	"github.com/pitabwire/translation-manager/security"
)

const (
	scopeUser = "user"
	scopeIP   = "ip"
)

// CallerKey identifies who a request is throttled as: the token subject once the
// auth middleware ran, the client IP otherwise.
func CallerKey(r *http.Request) (scope string, key string) {
	if claims := security.ClaimsFromContext(r.Context()); claims != nil {
		if subject := claims.GetProfileID(); subject != "" {
			return scopeUser, scopeUser + ":" + subject
		}
	}

	ip := util.GetIP(r)
	if ip == "" {
		ip = "unknown"
	}
	return scopeIP, scopeIP + ":" + ip
}

// ThrottleMiddleware rejects callers that exhausted their bucket with 429 Too Many Requests.
func ThrottleMiddleware(limiter *KeyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			scope, key := CallerKey(r)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerSecond))
			w.Header().Set("X-RateLimit-Scope", scope)

			if !limiter.Allow(key) {
				util.Log(r.Context()).WithField("caller", key).Debug("request throttled")
				writeThrottled(w, limiter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeThrottled(w http.ResponseWriter, limiter *KeyedLimiter) {
	retryAfter := max(1, int(math.Ceil(limiter.RetryAfter().Seconds())))

	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate limit exceeded","code":"rate_limit_exceeded"}`))
}
