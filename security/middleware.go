package security

import (
	"net/http"
	"strings"

	"github.com/pitabwire/util"
)

const (
	bearerScheme     = "Bearer "
	bearerTokenParts = 2
)

// AuthenticationMiddleware verifies the bearer token on each request and stores
// its claims in the request context before calling next.
func AuthenticationMiddleware(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := util.Log(ctx).WithField("path", r.URL.Path)

			authorizationHeader := r.Header.Get("Authorization")
			if authorizationHeader == "" || !strings.HasPrefix(authorizationHeader, bearerScheme) {
				logger.Debug("AuthenticationMiddleware -- could not authenticate missing token")
				writeUnauthorized(w, "An authorization header is required")
				return
			}

			extractedJwtToken := strings.Split(authorizationHeader, " ")
			if len(extractedJwtToken) != bearerTokenParts {
				logger.Debug("AuthenticationMiddleware -- token format is not valid")
				writeUnauthorized(w, "Malformed Authorization header")
				return
			}

			ctx, err := authenticator.Authenticate(ctx, strings.TrimSpace(extractedJwtToken[1]))
			if err != nil {
				logger.WithError(err).Info("AuthenticationMiddleware -- could not authenticate token")
				writeUnauthorized(w, "Authorization header is invalid")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
