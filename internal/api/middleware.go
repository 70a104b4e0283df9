package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/api/response"
)

// AuthMiddleware creates a middleware function that checks for a static bearer token.
func AuthMiddleware(requiredToken string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Debug("missing Authorization header", zap.String("path", r.URL.Path))
				_ = response.Error(w, http.StatusUnauthorized, "Unauthorized: Missing Authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				log.Debug("invalid Authorization header format", zap.String("path", r.URL.Path))
				_ = response.Error(w, http.StatusUnauthorized, "Unauthorized: Invalid Authorization header format")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(requiredToken)) != 1 {
				log.Warn("invalid bearer token", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
				_ = response.Error(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ApplyAuth wraps handler with AuthMiddleware unless requiredToken is empty.
func ApplyAuth(handler http.Handler, requiredToken string, log *zap.Logger) http.Handler {
	if requiredToken == "" {
		return handler
	}
	return AuthMiddleware(requiredToken, log)(handler)
}
