package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"drivechat/internal/auth"
	"drivechat/internal/httputil"
)

// publicPaths are reachable without a token.
var publicPaths = map[string]struct{}{
	"/health": {},
}

// Auth validates the bearer token on every request and stores the user id
// and the raw token in the request context. CORS pre-flight requests pass
// through untouched.
func Auth(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			r = httputil.WithUserID(r, claims.GetUserID())
			r = httputil.WithToken(r, token)
			next.ServeHTTP(w, r)
		})
	}
}
