package sidebar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/services"
	"convtree/internal/events"
)

func TestDispatcherMoveConversationToMissingFolder(t *testing.T) {
	ts := newTestSidebar(t)
	c := ts.mustCreateConversation(t, "Loose", nil)
	before := ts.storage.callCount()

	_, err := ts.dispatcher.MoveConversation(context.Background(), c.ID, models.StringPtr("no-such-folder"))
	if !errors.Is(err, domain.ErrValidation) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want validation wrapping not found", err)
	}
	if ts.storage.callCount() != before {
		t.Errorf("storage called %d times, want no calls", ts.storage.callCount()-before)
	}

	got, _ := ts.conversations.Get(c.ID)
	if got.FolderID != nil {
		t.Errorf("conversation moved in memory to %q", *got.FolderID)
	}
	if len(ts.notices.notices) != 1 {
		t.Fatalf("got %d notices, want 1", len(ts.notices.notices))
	}
	if ts.notices.notices[0].Level != services.NoticeWarning {
		t.Errorf("notice level = %v, want warning", ts.notices.notices[0].Level)
	}
}

func TestDispatcherMoveConversation(t *testing.T) {
	ts := newTestSidebar(t)
	f := ts.mustCreateFolder(t, "Work", nil)
	c := ts.mustCreateConversation(t, "Plan", nil)

	moved, err := ts.dispatcher.MoveConversation(context.Background(), c.ID, &f.ID)
	if err != nil {
		t.Fatalf("MoveConversation() failed: %v", err)
	}
	if moved.FolderID == nil || *moved.FolderID != f.ID {
		t.Errorf("FolderID = %v, want %s", moved.FolderID, f.ID)
	}

	stored, _ := ts.storage.GetConversation(context.Background(), c.ID)
	if stored.FolderID == nil || *stored.FolderID != f.ID {
		t.Error("move was not persisted")
	}
	if ts.events.count(events.TopicConversationsChanged) == 0 || ts.events.count(events.TopicTreeInvalidated) == 0 {
		t.Error("move should publish conversations-changed and tree-invalidated")
	}
}

func TestDispatcherMoveConversationPersistenceFailure(t *testing.T) {
	ts := newTestSidebar(t)
	f := ts.mustCreateFolder(t, "Work", nil)
	c := ts.mustCreateConversation(t, "Plan", nil)
	ts.storage.failOn("MoveConversationToFolder")

	_, err := ts.dispatcher.MoveConversation(context.Background(), c.ID, &f.ID)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("error = %v, want persistence error", err)
	}
	got, _ := ts.conversations.Get(c.ID)
	if got.FolderID != nil {
		t.Error("in-memory folder changed although persistence failed")
	}
	if n := len(ts.notices.notices); n != 1 || ts.notices.notices[0].Level != services.NoticeError {
		t.Errorf("want one error notice, got %+v", ts.notices.notices)
	}
}

func TestDispatcherCreateConversation(t *testing.T) {
	ts := newTestSidebar(t)
	f := ts.mustCreateFolder(t, "Work", nil)

	c, err := ts.dispatcher.CreateConversation(context.Background(), "Inside", &f.ID)
	if err != nil {
		t.Fatalf("CreateConversation() failed: %v", err)
	}
	if c.FolderID == nil || *c.FolderID != f.ID {
		t.Errorf("FolderID = %v, want %s", c.FolderID, f.ID)
	}
	if sel := ts.conversations.Selected(); sel == nil || *sel != c.ID {
		t.Error("a new conversation should become selected")
	}
	if ts.events.count(events.TopicConversationSelected) != 1 {
		t.Error("creation should publish conversation-selected")
	}

	before := ts.storage.callCount()
	_, err = ts.dispatcher.CreateConversation(context.Background(), "Nowhere", models.StringPtr("missing"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("create in missing folder: error = %v, want validation", err)
	}
	if ts.storage.callCount() != before {
		t.Error("create in missing folder reached storage")
	}
}

func TestDispatcherDeleteFolderPromotesChildren(t *testing.T) {
	tests := []struct {
		name       string
		policy     FolderDeletePolicy
		wantParent func(root *models.Folder) *string
	}{
		{
			name:       "promote to parent",
			policy:     PromoteChildren,
			wantParent: func(root *models.Folder) *string { return &root.ID },
		},
		{
			name:       "move to root",
			policy:     ChildrenToRoot,
			wantParent: func(*models.Folder) *string { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSidebar(t, WithFolderDeletePolicy(tt.policy))
			root := ts.mustCreateFolder(t, "Root", nil)
			doomed := ts.mustCreateFolder(t, "Doomed", &root.ID)
			child := ts.mustCreateFolder(t, "Child", &doomed.ID)
			inside := ts.mustCreateConversation(t, "Inside", &doomed.ID)
			deeper := ts.mustCreateConversation(t, "Deeper", &child.ID)

			deleted, err := ts.dispatcher.DeleteFolder(context.Background(), doomed.ID)
			if err != nil || !deleted {
				t.Fatalf("DeleteFolder() = %v, %v", deleted, err)
			}

			if ts.folders.Exists(doomed.ID) {
				t.Error("folder still exists")
			}
			got, _ := ts.folders.Get(child.ID)
			want := tt.wantParent(root)
			if !models.SameParent(got.ParentID, want) {
				t.Errorf("child parent = %v, want %v", got.ParentID, want)
			}

			c, _ := ts.conversations.Get(inside.ID)
			if c.FolderID != nil {
				t.Errorf("contained conversation should move to root, is in %q", *c.FolderID)
			}
			d, _ := ts.conversations.Get(deeper.ID)
			if d.FolderID == nil || *d.FolderID != child.ID {
				t.Error("conversations of child folders stay with their folder")
			}

			stored, _ := ts.storage.GetFolders(context.Background())
			for _, f := range stored {
				if f.ID == doomed.ID {
					t.Error("folder still in storage")
				}
				if f.ID == child.ID && !models.SameParent(f.ParentID, want) {
					t.Error("child move was not persisted")
				}
			}
			if err := ts.folders.ValidateForest(); err != nil {
				t.Errorf("forest broken after delete: %v", err)
			}
		})
	}
}

func TestDispatcherCreateConversationMoveFailure(t *testing.T) {
	ts := newTestSidebar(t)
	work := ts.mustCreateFolder(t, "Work", nil)
	ts.storage.failOn("MoveConversationToFolder")
	published := len(ts.events.events)

	conv, err := ts.dispatcher.CreateConversation(context.Background(), "x", &work.ID)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("error = %v, want persistence error", err)
	}
	if conv != nil {
		t.Errorf("got %+v, want nil conversation", conv)
	}
	if ts.conversations.Len() != 0 {
		t.Errorf("store holds %d conversations, want 0", ts.conversations.Len())
	}
	stored, _ := ts.storage.Storage.GetConversations(context.Background())
	if len(stored) != 0 {
		t.Errorf("storage holds %d conversations, want 0", len(stored))
	}
	if ts.conversations.Selected() != nil {
		t.Error("nothing should be selected")
	}
	if len(ts.events.events) != published {
		t.Errorf("failed create published %v", ts.events.events[published:])
	}
	if n := len(ts.notices.notices); n != 1 || ts.notices.notices[0].Level != services.NoticeError {
		t.Errorf("want one error notice, got %+v", ts.notices.notices)
	}
}

func TestDispatcherDeleteFolderReportsPartialProgress(t *testing.T) {
	ts := newTestSidebar(t)
	doomed := ts.mustCreateFolder(t, "Doomed", nil)
	child := ts.mustCreateFolder(t, "Child", &doomed.ID)
	inside := ts.mustCreateConversation(t, "Inside", &doomed.ID)
	ts.storage.failOn("SaveFolder")

	deleted, err := ts.dispatcher.DeleteFolder(context.Background(), doomed.ID)
	if deleted || !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("DeleteFolder() = %v, %v; want false and a persistence error", deleted, err)
	}

	if !ts.folders.Exists(doomed.ID) {
		t.Error("folder should survive a failed delete")
	}
	got, _ := ts.folders.Get(child.ID)
	if got.ParentID == nil || *got.ParentID != doomed.ID {
		t.Error("child folder should keep its parent when its move failed")
	}
	c, _ := ts.conversations.Get(inside.ID)
	if c.FolderID != nil {
		t.Error("conversation moved before the failure should stay at root")
	}

	if len(ts.notices.notices) != 1 {
		t.Fatalf("want one notice, got %+v", ts.notices.notices)
	}
	msg := ts.notices.notices[0].Message
	if !strings.Contains(msg, inside.ID) || !strings.Contains(msg, doomed.ID) {
		t.Errorf("notice should name the kept folder and moved conversations: %q", msg)
	}
	if ts.events.count(events.TopicTreeInvalidated) == 0 {
		t.Error("partial progress should invalidate the tree")
	}
}

func TestDispatcherDeleteDeclined(t *testing.T) {
	ts := newTestSidebar(t, WithConfirmer(services.NeverConfirm))
	f := ts.mustCreateFolder(t, "Keep", nil)
	c := ts.mustCreateConversation(t, "Keep", nil)

	deleted, err := ts.dispatcher.DeleteConversation(context.Background(), c.ID)
	if err != nil || deleted {
		t.Errorf("DeleteConversation() = %v, %v; want false, nil", deleted, err)
	}
	deleted, err = ts.dispatcher.DeleteFolder(context.Background(), f.ID)
	if err != nil || deleted {
		t.Errorf("DeleteFolder() = %v, %v; want false, nil", deleted, err)
	}

	if ts.storage.called("DeleteConversation") != 0 || ts.storage.called("DeleteFolder") != 0 {
		t.Error("declined deletes reached storage")
	}
	if len(ts.notices.notices) != 0 {
		t.Errorf("declines should not raise notices, got %+v", ts.notices.notices)
	}
}

func TestDispatcherConfirmerFromContext(t *testing.T) {
	ts := newTestSidebar(t, WithConfirmer(services.NeverConfirm))
	c := ts.mustCreateConversation(t, "Gone", nil)

	var asked services.Confirmation
	ctx := ContextWithConfirmer(context.Background(), func(_ context.Context, conf services.Confirmation) (bool, error) {
		asked = conf
		return true, nil
	})

	deleted, err := ts.dispatcher.DeleteConversation(ctx, c.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteConversation() = %v, %v", deleted, err)
	}
	if asked.ResourceID != c.ID || asked.Message == "" {
		t.Errorf("confirmation not populated: %+v", asked)
	}
	if ts.conversations.Selected() != nil {
		t.Error("selection should be cleared")
	}
}

func TestDispatcherConfirmerError(t *testing.T) {
	failing := func(context.Context, services.Confirmation) (bool, error) {
		return false, errors.New("prompt closed")
	}
	ts := newTestSidebar(t, WithConfirmer(failing))
	c := ts.mustCreateConversation(t, "Stays", nil)

	if _, err := ts.dispatcher.DeleteConversation(context.Background(), c.ID); err == nil {
		t.Fatal("expected the confirmer error")
	}
	if _, err := ts.conversations.Get(c.ID); err != nil {
		t.Error("conversation deleted although confirmation failed")
	}
}

func TestDispatcherRenameFolderPublishesOnlyChanges(t *testing.T) {
	ts := newTestSidebar(t)
	f := ts.mustCreateFolder(t, "Same", nil)
	before := ts.events.count(events.TopicFoldersChanged)

	if _, err := ts.dispatcher.RenameFolder(context.Background(), f.ID, "Same"); err != nil {
		t.Fatal(err)
	}
	if ts.events.count(events.TopicFoldersChanged) != before {
		t.Error("unchanged rename should not publish")
	}
	if _, err := ts.dispatcher.RenameFolder(context.Background(), f.ID, "Other"); err != nil {
		t.Fatal(err)
	}
	if ts.events.count(events.TopicFoldersChanged) != before+1 {
		t.Error("rename should publish folders-changed")
	}
}

func TestDispatcherToggleFolder(t *testing.T) {
	ts := newTestSidebar(t)
	f := ts.mustCreateFolder(t, "A", nil)

	expanded, err := ts.dispatcher.ToggleFolder(context.Background(), f.ID)
	if err != nil || expanded {
		t.Errorf("ToggleFolder() = %v, %v; want collapsed", expanded, err)
	}
	if _, err := ts.dispatcher.ToggleFolder(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("toggle missing: error = %v, want not found", err)
	}
}

func TestDispatcherDrop(t *testing.T) {
	ts := newTestSidebar(t)
	a := ts.mustCreateFolder(t, "A", nil)
	b := ts.mustCreateFolder(t, "B", &a.ID)
	c := ts.mustCreateConversation(t, "C", nil)
	ctx := context.Background()

	payload := models.ConversationPayload{ID: c.ID}
	ts.dispatcher.StartDrag(payload)
	intent, err := ts.dispatcher.Drop(ctx, payload, models.FolderTarget(b.ID))
	if err != nil {
		t.Fatalf("Drop() failed: %v", err)
	}
	if _, ok := intent.(models.MoveConversationIntent); !ok {
		t.Errorf("intent = %T, want MoveConversationIntent", intent)
	}
	if ts.drag.State(payload) != DragIdle {
		t.Error("drop should end the drag")
	}
	got, _ := ts.conversations.Get(c.ID)
	if got.FolderID == nil || *got.FolderID != b.ID {
		t.Error("conversation was not moved")
	}

	// Folder into its own descendant
	folderPayload := models.FolderPayload{ID: a.ID}
	ts.dispatcher.StartDrag(folderPayload)
	if _, err := ts.dispatcher.Drop(ctx, folderPayload, models.FolderTarget(b.ID)); !errors.Is(err, domain.ErrStructural) {
		t.Fatalf("drop into descendant: error = %v, want structural", err)
	}
	if ts.drag.State(folderPayload) != DragIdle {
		t.Error("a failed drop should still end the drag")
	}

	// Folder to root
	intent, err = ts.dispatcher.Drop(ctx, models.FolderPayload{ID: b.ID}, models.RootTarget())
	if err != nil {
		t.Fatalf("drop folder on root: %v", err)
	}
	if in, ok := intent.(models.ReparentFolderIntent); !ok || in.ParentID != nil {
		t.Errorf("intent = %+v, want reparent to root", intent)
	}
}

func TestDispatcherObservesOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	ts := newTestSidebar(t, WithObserver(obs), WithConfirmer(services.NeverConfirm))
	c := ts.mustCreateConversation(t, "A", nil)

	ts.dispatcher.DeleteConversation(context.Background(), c.ID)
	ts.dispatcher.RenameConversation(context.Background(), "missing", "X")

	want := []string{
		actionCreateConversation + ":" + OutcomeSuccess,
		actionDeleteConversation + ":" + OutcomeDeclined,
		actionRenameConversation + ":" + OutcomeError,
	}
	if !equalStrings(obs.outcomes, want) {
		t.Errorf("outcomes = %v, want %v", obs.outcomes, want)
	}
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveAction(action, outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, action+":"+outcome)
}
