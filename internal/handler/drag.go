package handler

import (
	"log/slog"
	"net/http"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/services"
	"convtree/internal/httputil"
)

// DragHandler handles drag gestures and drops
type DragHandler struct {
	base
}

// NewDragHandler creates a new drag handler
func NewDragHandler(sessions Sessions, logger *slog.Logger) *DragHandler {
	return &DragHandler{base{sessions: sessions, logger: logger}}
}

// DropRequest is the body of POST /api/drop
type DropRequest struct {
	Payload models.DragPayloadJSON `json:"payload"`
	Target  models.DropTarget      `json:"target"`
}

// DragStateResponse reports an element's drag state
type DragStateResponse struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	State string `json:"state"`
}

// DropResponse describes what a drop did
type DropResponse struct {
	Action   string  `json:"action"`
	ID       string  `json:"id,omitempty"`
	FolderID *string `json:"folder_id"`
	Reason   string  `json:"reason,omitempty"`
}

// StartDrag marks an element as being dragged
// POST /api/drag/start
func (h *DragHandler) StartDrag(w http.ResponseWriter, r *http.Request) {
	h.gesture(w, r, func(d services.SidebarService, p models.DragPayload) { d.StartDrag(p) })
}

// EndDrag returns an element to idle; ending an idle element is fine
// POST /api/drag/end
func (h *DragHandler) EndDrag(w http.ResponseWriter, r *http.Request) {
	h.gesture(w, r, func(d services.SidebarService, p models.DragPayload) { d.EndDrag(p) })
}

// Drop resolves and executes a drop. The drag ends whatever the outcome.
// POST /api/drop
func (h *DragHandler) Drop(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req DropRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	payload, err := parsePayload(req.Payload)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var intent models.DropIntent
	err = ws.Do(func(d services.SidebarService) error {
		var err error
		intent, err = d.Drop(r.Context(), payload, req.Target)
		return err
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, describeIntent(intent))
}

func (h *DragHandler) gesture(w http.ResponseWriter, r *http.Request, fn func(d services.SidebarService, p models.DragPayload)) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req models.DragPayloadJSON
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	payload, err := parsePayload(req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = ws.Do(func(d services.SidebarService) error {
		fn(d, payload)
		return nil
	})

	httputil.RespondJSON(w, http.StatusOK, DragStateResponse{
		Type:  string(payload.Kind()),
		ID:    payload.EntityID(),
		State: ws.DragState(payload).String(),
	})
}

func parsePayload(raw models.DragPayloadJSON) (models.DragPayload, error) {
	p, err := models.ParseDragPayload(raw.Type, raw.ID)
	if err != nil {
		return nil, domain.NewValidation("invalid drag payload", err)
	}
	return p, nil
}

func describeIntent(intent models.DropIntent) DropResponse {
	switch in := intent.(type) {
	case models.MoveConversationIntent:
		return DropResponse{Action: "move_conversation", ID: in.ConversationID, FolderID: in.FolderID}
	case models.ReparentFolderIntent:
		return DropResponse{Action: "reparent_folder", ID: in.FolderID, FolderID: in.ParentID}
	case models.NoopIntent:
		return DropResponse{Action: "none", Reason: in.Reason}
	}
	return DropResponse{Action: "none"}
}
