package sidebar

import (
	"convtree/internal/domain"
	"convtree/internal/domain/models"
)

// DragState is the per-element drag state
type DragState int

const (
	DragIdle DragState = iota
	DragDragging
)

func (s DragState) String() string {
	if s == DragDragging {
		return "dragging"
	}
	return "idle"
}

// DragTracker tracks the single element being dragged. Every element not
// being dragged is Idle.
type DragTracker struct {
	active models.DragPayload
}

// Start marks p as dragging. A drag already in progress on another element
// ends first and is returned.
func (t *DragTracker) Start(p models.DragPayload) (ended models.DragPayload) {
	if t.active != nil && models.DragKey(t.active) != models.DragKey(p) {
		ended = t.active
	}
	t.active = p
	return ended
}

// End returns p to Idle. Ending an element that is not dragging is a no-op.
func (t *DragTracker) End(p models.DragPayload) {
	if t.active != nil && p != nil && models.DragKey(t.active) == models.DragKey(p) {
		t.active = nil
	}
}

// State reports the drag state of p
func (t *DragTracker) State(p models.DragPayload) DragState {
	if t.active != nil && p != nil && models.DragKey(t.active) == models.DragKey(p) {
		return DragDragging
	}
	return DragIdle
}

// Active returns the element being dragged, or nil
func (t *DragTracker) Active() models.DragPayload {
	return t.active
}

// FolderLookup is the part of the folder store a drop needs
type FolderLookup interface {
	Get(id string) (*models.Folder, error)
	Exists(id string) bool
	ValidateReparent(id string, newParentID *string) error
}

// ResolveDrop maps a payload dropped on a target to the intent to execute.
// It reads the folders and changes nothing.
func ResolveDrop(folders FolderLookup, payload models.DragPayload, target models.DropTarget) (models.DropIntent, error) {
	if payload == nil {
		return nil, domain.NewValidation("drop requires a payload", nil)
	}
	targetID := models.NormalizeParentID(target.FolderID)

	switch p := payload.(type) {
	case models.ConversationPayload:
		if targetID != nil && !folders.Exists(*targetID) {
			return nil, domain.NewNotFound("folder", *targetID)
		}
		return models.MoveConversationIntent{ConversationID: p.ID, FolderID: targetID}, nil

	case models.FolderPayload:
		current, err := folders.Get(p.ID)
		if err != nil {
			return nil, err
		}
		if err := folders.ValidateReparent(p.ID, targetID); err != nil {
			return nil, err
		}
		if models.SameParent(current.ParentID, targetID) {
			return models.NoopIntent{Reason: "folder already in target"}, nil
		}
		return models.ReparentFolderIntent{FolderID: p.ID, ParentID: targetID}, nil
	}

	return nil, domain.NewValidation("unsupported drag payload", nil)
}
