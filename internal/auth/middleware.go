package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// RequireJWT wraps an http.Handler, rejecting any request without a valid
// bearer token and attaching the embedded user to the request context.
func RequireJWT(svc *JWTService, logger *slog.Logger, writeErr func(http.ResponseWriter, int, string), next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := svc.Validate(token)
		if err != nil {
			logger.Warn("jwt validation failed", "error", err)
			writeErr(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
