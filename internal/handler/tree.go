package handler

import (
	"log/slog"
	"net/http"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/httputil"
	"convtree/internal/service/sidebar"
)

// TreeHandler serves the rendered tree and the session's view state
type TreeHandler struct {
	base
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(sessions Sessions, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{base{sessions: sessions, logger: logger}}
}

// UpdateViewRequest is the body of PATCH /api/view.
// tag: absent leaves the selection, null or "" clears it.
type UpdateViewRequest struct {
	Query  *string                 `json:"query"`
	Tag    httputil.OptionalString `json:"tag"`
	Filter *string                 `json:"filter"`
	Sort   *string                 `json:"sort"`
}

// GetTree renders the visible tree. query, tag, filter and sort update the
// session view first; expand_all and policy only affect this render.
// GET /api/tree
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	patch, err := viewPatchFromQuery(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if patch != nil {
		if _, err := ws.UpdateView(*patch); err != nil {
			h.handleError(w, r, err)
			return
		}
		h.saveSession(r, ws)
	}

	opts := sidebar.RenderOptions{ExpandAll: httputil.QueryBool(r, "expand_all")}
	if p := r.URL.Query().Get("policy"); p != "" {
		policy, err := sidebar.ParseEmptyFolderPolicy(p)
		if err != nil {
			h.handleError(w, r, domain.NewValidation("invalid policy", err))
			return
		}
		opts.Policy = policy
	}

	tree, err := ws.RenderWith(opts)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, tree)
}

// GetView returns the session view state
// GET /api/view
func (h *TreeHandler) GetView(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ws.View())
}

// UpdateView patches the session view state
// PATCH /api/view
func (h *TreeHandler) UpdateView(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req UpdateViewRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	patch := models.ViewPatch{Query: req.Query}
	if req.Tag.Present {
		patch.TagSet = true
		patch.Tag = req.Tag.Value
	}
	if err := parseViewEnums(&patch, req.Filter, req.Sort); err != nil {
		h.handleError(w, r, err)
		return
	}

	view, err := ws.UpdateView(patch)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.saveSession(r, ws)
	httputil.RespondJSON(w, http.StatusOK, view)
}

// GetTags returns tag usage counts
// GET /api/tags
func (h *TreeHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ws.Tags())
}

// viewPatchFromQuery returns nil when no view parameter is present
func viewPatchFromQuery(r *http.Request) (*models.ViewPatch, error) {
	q := r.URL.Query()
	if !q.Has("query") && !q.Has("tag") && !q.Has("filter") && !q.Has("sort") {
		return nil, nil
	}

	patch := models.ViewPatch{Query: httputil.QueryOptional(r, "query")}
	if q.Has("tag") {
		patch.TagSet = true
		patch.Tag = httputil.QueryOptional(r, "tag")
	}
	if err := parseViewEnums(&patch, httputil.QueryOptional(r, "filter"), httputil.QueryOptional(r, "sort")); err != nil {
		return nil, err
	}
	return &patch, nil
}

func parseViewEnums(patch *models.ViewPatch, filter, sort *string) error {
	if filter != nil {
		c, err := models.ParseFilterCategory(*filter)
		if err != nil {
			return domain.NewValidation("invalid filter", err)
		}
		patch.Category = &c
	}
	if sort != nil {
		s, err := models.ParseSortKey(*sort)
		if err != nil {
			return domain.NewValidation("invalid sort", err)
		}
		patch.Sort = &s
	}
	return nil
}
