package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"convtree/internal/auth"
	"convtree/internal/httputil"
)

// Auth resolves the workspace owner of every request. With a verifier the
// owner is the subject of a bearer token; without one every request acts as
// devOwnerID. Paths in public skip authentication.
func Auth(verifier auth.Verifier, devOwnerID string, logger *slog.Logger, public ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(public))
	for _, p := range public {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if verifier == nil {
				next.ServeHTTP(w, httputil.WithOwnerID(r, devOwnerID))
				return
			}

			token := bearerToken(r)
			if token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithOwnerID(r, claims.OwnerID()))
		})
	}
}

// bearerToken reads the Authorization header, falling back to ?access_token=
// for EventSource clients, which cannot set headers
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
