package handler

import (
	"log/slog"
	"net/http"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/services"
	"convtree/internal/httputil"
	"convtree/internal/service/sidebar"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	base
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(sessions Sessions, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{base{sessions: sessions, logger: logger}}
}

// CreateFolderRequest is the body of POST /api/folders
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

// UpdateFolderRequest is the body of PATCH /api/folders/{id}.
// parent_id: absent leaves the parent, null or "" moves to root.
type UpdateFolderRequest struct {
	Name     *string                 `json:"name"`
	ParentID httputil.OptionalString `json:"parent_id"`
}

// ToggleFolderResponse reports the new expansion state
type ToggleFolderResponse struct {
	ID       string `json:"id"`
	Expanded bool   `json:"expanded"`
}

// ListFolders returns every folder
// GET /api/folders
func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ws.Folders())
}

// CreateFolder creates a folder
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	var req CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	var folder *models.Folder
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		folder, err = d.CreateFolder(r.Context(), req.Name, req.ParentID)
		return err
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// UpdateFolder renames and/or reparents a folder
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var req UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	var folder *models.Folder
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		if req.Name != nil {
			if folder, err = d.RenameFolder(r.Context(), id, *req.Name); err != nil {
				return err
			}
		}
		if req.ParentID.Present {
			if folder, err = d.MoveFolder(r.Context(), id, req.ParentID.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && folder == nil {
		folder, err = findFolder(ws, id)
	}
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder deletes a folder after ?confirm=true, rehoming its contents
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	ctx, asked := confirmContext(r)
	var deleted bool
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		deleted, err = d.DeleteFolder(ctx, id)
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

// ToggleFolder flips a folder's expansion state
// POST /api/folders/{id}/toggle
func (h *FolderHandler) ToggleFolder(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var expanded bool
	err := ws.Do(func(d services.SidebarService) error {
		var err error
		expanded, err = d.ToggleFolder(r.Context(), id)
		return err
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.saveSession(r, ws)
	httputil.RespondJSON(w, http.StatusOK, ToggleFolderResponse{ID: id, Expanded: expanded})
}

func findFolder(ws *sidebar.Workspace, id string) (*models.Folder, error) {
	for _, f := range ws.Folders() {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, domain.NewNotFound("folder", id)
}
