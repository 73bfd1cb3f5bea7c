package handler

import (
	"context"
	"log/slog"
	"net/http"

	"convtree/internal/domain/models"
	"convtree/internal/domain/services"
	"convtree/internal/httputil"
	"convtree/internal/service/sidebar"
)

// ConversationHandler handles conversation HTTP requests
type ConversationHandler struct {
	base
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(sessions Sessions, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{base{sessions: sessions, logger: logger}}
}

// CreateConversationRequest is the body of POST /api/conversations
type CreateConversationRequest struct {
	Title    string  `json:"title"`
	FolderID *string `json:"folder_id"`
}

// UpdateConversationRequest is the body of PATCH /api/conversations/{id}.
// folder_id: absent leaves the folder, null or "" moves to root.
type UpdateConversationRequest struct {
	Title    *string                 `json:"title"`
	FolderID httputil.OptionalString `json:"folder_id"`
}

// UpdateTagsRequest is the body of PUT /api/conversations/{id}/tags
type UpdateTagsRequest struct {
	Tags []string `json:"tags"`
}

// ListConversations returns the conversations passing the session's view
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	convs := ws.Conversations()
	out := make([]models.ConversationSummary, len(convs))
	for i, c := range convs {
		out[i] = c.Summary()
	}
	httputil.RespondJSON(w, http.StatusOK, out)
}

// CreateConversation creates a conversation and selects it
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	var conv *models.Conversation
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		conv, err = d.CreateConversation(r.Context(), req.Title, req.FolderID)
		return err
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.saveSession(r, ws)
	httputil.RespondJSON(w, http.StatusCreated, conv)
}

// GetConversation returns a conversation with its messages
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	conv, err := ws.Conversation(r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// UpdateConversation renames and/or moves a conversation
// PATCH /api/conversations/{id}
func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var req UpdateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	var conv *models.Conversation
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		if req.Title != nil {
			if conv, err = d.RenameConversation(r.Context(), id, *req.Title); err != nil {
				return err
			}
		}
		if req.FolderID.Present {
			if conv, err = d.MoveConversation(r.Context(), id, req.FolderID.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && conv == nil {
		// Empty patch; still 404 for unknown ids
		conv, err = ws.Conversation(id)
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// DeleteConversation deletes a conversation. Without ?confirm=true the
// deletion is declined and the confirmation prompt is returned with 428.
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	ctx, asked := confirmContext(r)
	var deleted bool
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		deleted, err = d.DeleteConversation(ctx, id)
		return err
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if !deleted {
		respondConfirmationRequired(w, asked())
		return
	}

	h.saveSession(r, ws)
	w.WriteHeader(http.StatusNoContent)
}

// SelectConversation makes a conversation current
// POST /api/conversations/{id}/select
func (h *ConversationHandler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, d services.SidebarService, id string) (*models.Conversation, error) {
		return d.SelectConversation(ctx, id)
	})
}

// ToggleStar flips the starred flag
// POST /api/conversations/{id}/star
func (h *ConversationHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, d services.SidebarService, id string) (*models.Conversation, error) {
		return d.ToggleStar(ctx, id)
	})
}

// UpdateTags replaces the tag list
// PUT /api/conversations/{id}/tags
func (h *ConversationHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	var req UpdateTagsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, d services.SidebarService, id string) (*models.Conversation, error) {
		return d.UpdateTags(ctx, id, req.Tags)
	})
}

// AddMessage appends a message
// POST /api/conversations/{id}/messages
func (h *ConversationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req services.MessageInput
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	var msg *models.Message
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		msg, err = d.AddMessage(r.Context(), r.PathValue("id"), req)
		return err
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, msg)
}

func (h *ConversationHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, d services.SidebarService, id string) (*models.Conversation, error)) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var conv *models.Conversation
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		conv, err = fn(r.Context(), d, r.PathValue("id"))
		return err
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.saveSession(r, ws)
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// confirmContext reads ?confirm=true. Without it the dispatcher's prompt is
// declined and captured so the client can show it and retry.
func confirmContext(r *http.Request) (context.Context, func() *services.Confirmation) {
	if httputil.QueryBool(r, "confirm") {
		return sidebar.ContextWithConfirmer(r.Context(), services.AlwaysConfirm), func() *services.Confirmation { return nil }
	}

	var asked *services.Confirmation
	ctx := sidebar.ContextWithConfirmer(r.Context(), func(_ context.Context, c services.Confirmation) (bool, error) {
		asked = &c
		return false, nil
	})
	return ctx, func() *services.Confirmation { return asked }
}

func respondConfirmationRequired(w http.ResponseWriter, c *services.Confirmation) {
	if c == nil {
		httputil.RespondError(w, http.StatusPreconditionRequired, "confirmation required")
		return
	}
	httputil.RespondErrorWithExtras(w, http.StatusPreconditionRequired, c.Message, map[string]any{
		"confirmation": c,
	})
}
