package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"convtree/internal/domain"
	"convtree/internal/httputil"
	"convtree/internal/service/sidebar"
)

// Sessions resolves the caller's workspace. *sidebar.Registry implements it.
type Sessions interface {
	Get(ctx context.Context, ownerID string) (*sidebar.Workspace, error)
	SaveSession(ctx context.Context, ws *sidebar.Workspace) error
}

// base carries what every handler needs
type base struct {
	sessions Sessions
	logger   *slog.Logger
}

// workspace loads the caller's workspace, writing the error response on failure
func (b *base) workspace(w http.ResponseWriter, r *http.Request) (*sidebar.Workspace, bool) {
	ownerID := httputil.GetOwnerID(r)
	if ownerID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "unauthenticated")
		return nil, false
	}

	ws, err := b.sessions.Get(r.Context(), ownerID)
	if err != nil {
		b.handleError(w, r, err)
		return nil, false
	}
	return ws, true
}

// saveSession persists view state; failures only lose UI state, so they are logged
func (b *base) saveSession(r *http.Request, ws *sidebar.Workspace) {
	if err := b.sessions.SaveSession(r.Context(), ws); err != nil {
		b.logger.Warn("failed to save session", "owner_id", ws.OwnerID(), "error", err)
	}
}

// handleError converts domain errors to RFC 7807 responses
func (b *base) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.StatusCode(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"owner_id", httputil.GetOwnerID(r),
			"error", err,
		)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		httputil.RespondError(w, http.StatusGatewayTimeout, "storage timed out")
		return
	}
	httputil.RespondDomainError(w, err)
}

// HealthCheck reports liveness
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
