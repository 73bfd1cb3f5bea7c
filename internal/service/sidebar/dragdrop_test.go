package sidebar

import (
	"errors"
	"testing"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
)

func TestDragTracker(t *testing.T) {
	var tr DragTracker
	a := models.ConversationPayload{ID: "a"}
	b := models.FolderPayload{ID: "b"}

	if tr.State(a) != DragIdle {
		t.Error("elements start idle")
	}
	if ended := tr.Start(a); ended != nil {
		t.Errorf("first Start ended %v", ended)
	}
	if tr.State(a) != DragDragging {
		t.Error("a should be dragging")
	}

	ended := tr.Start(b)
	if ended == nil || ended.EntityID() != "a" {
		t.Errorf("starting b should end a, ended %v", ended)
	}
	if tr.State(a) != DragIdle || tr.State(b) != DragDragging {
		t.Error("only one element drags at a time")
	}

	// Same id, different kind is a different element
	if tr.State(models.ConversationPayload{ID: "b"}) != DragIdle {
		t.Error("conversation b is not the dragged folder b")
	}

	tr.End(a)
	if tr.State(b) != DragDragging {
		t.Error("ending an idle element must not touch the active drag")
	}
	tr.End(b)
	if tr.Active() != nil {
		t.Error("End should clear the active drag")
	}
	tr.End(b)
}

func TestResolveDrop(t *testing.T) {
	ts := newTestSidebar(t)
	a := ts.mustCreateFolder(t, "A", nil)
	b := ts.mustCreateFolder(t, "B", &a.ID)
	before := ts.storage.callCount()

	tests := []struct {
		name    string
		payload models.DragPayload
		target  models.DropTarget
		want    models.DropIntent
		wantErr error
	}{
		{
			name:    "conversation into folder",
			payload: models.ConversationPayload{ID: "c1"},
			target:  models.FolderTarget(b.ID),
			want:    models.MoveConversationIntent{ConversationID: "c1", FolderID: &b.ID},
		},
		{
			name:    "conversation to root",
			payload: models.ConversationPayload{ID: "c1"},
			target:  models.RootTarget(),
			want:    models.MoveConversationIntent{ConversationID: "c1"},
		},
		{
			name:    "conversation to blank target is root",
			payload: models.ConversationPayload{ID: "c1"},
			target:  models.DropTarget{FolderID: models.StringPtr("")},
			want:    models.MoveConversationIntent{ConversationID: "c1"},
		},
		{
			name:    "conversation into missing folder",
			payload: models.ConversationPayload{ID: "c1"},
			target:  models.FolderTarget("missing"),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "folder to root",
			payload: models.FolderPayload{ID: b.ID},
			target:  models.RootTarget(),
			want:    models.ReparentFolderIntent{FolderID: b.ID},
		},
		{
			name:    "folder onto its current parent",
			payload: models.FolderPayload{ID: b.ID},
			target:  models.FolderTarget(a.ID),
			want:    models.NoopIntent{Reason: "folder already in target"},
		},
		{
			name:    "folder onto itself",
			payload: models.FolderPayload{ID: a.ID},
			target:  models.FolderTarget(a.ID),
			wantErr: domain.ErrStructural,
		},
		{
			name:    "folder into descendant",
			payload: models.FolderPayload{ID: a.ID},
			target:  models.FolderTarget(b.ID),
			wantErr: domain.ErrStructural,
		},
		{
			name:    "missing folder",
			payload: models.FolderPayload{ID: "missing"},
			target:  models.RootTarget(),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "no payload",
			target:  models.RootTarget(),
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDrop(ts.folders, tt.payload, tt.target)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveDrop() failed: %v", err)
			}
			if !sameIntent(got, tt.want) {
				t.Errorf("intent = %+v, want %+v", got, tt.want)
			}
		})
	}

	if ts.storage.callCount() != before {
		t.Error("ResolveDrop must not write")
	}
}

func sameIntent(a, b models.DropIntent) bool {
	switch x := a.(type) {
	case models.MoveConversationIntent:
		y, ok := b.(models.MoveConversationIntent)
		return ok && x.ConversationID == y.ConversationID && models.SameParent(x.FolderID, y.FolderID)
	case models.ReparentFolderIntent:
		y, ok := b.(models.ReparentFolderIntent)
		return ok && x.FolderID == y.FolderID && models.SameParent(x.ParentID, y.ParentID)
	case models.NoopIntent:
		y, ok := b.(models.NoopIntent)
		return ok && x.Reason == y.Reason
	}
	return false
}
