package sidebar

import (
	"context"
	"errors"
	"testing"
	"time"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
)

func newTestFolderStore(t *testing.T) (*FolderStore, *fakeStorage) {
	t.Helper()
	storage := newFakeStorage()
	return NewFolderStore(storage, time.Second, testLogger()), storage
}

func mustCreate(t *testing.T, s *FolderStore, name string, parentID *string) *models.Folder {
	t.Helper()
	f, err := s.CreateFolder(context.Background(), name, parentID)
	if err != nil {
		t.Fatalf("CreateFolder(%q) failed: %v", name, err)
	}
	return f
}

func folderNames(folders []*models.Folder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.Name
	}
	return out
}

func TestFolderStoreRootAndChildSeparation(t *testing.T) {
	s, _ := newTestFolderStore(t)
	work := mustCreate(t, s, "Work", nil)
	mustCreate(t, s, "Sub", &work.ID)

	roots := folderNames(s.GetChildFolders(nil))
	if !equalStrings(roots, []string{"Work"}) {
		t.Errorf("GetChildFolders(nil) = %v, want [Work]", roots)
	}
	children := folderNames(s.GetChildFolders(&work.ID))
	if !equalStrings(children, []string{"Sub"}) {
		t.Errorf("GetChildFolders(Work) = %v, want [Sub]", children)
	}

	for _, f := range s.GetChildFolders(nil) {
		if models.NormalizeParentID(f.ParentID) != nil {
			t.Errorf("root listing contains %q with parent %v", f.Name, *f.ParentID)
		}
	}
}

func TestFolderStoreBlankParentIsRoot(t *testing.T) {
	s, _ := newTestFolderStore(t)
	f := mustCreate(t, s, "Loose", models.StringPtr(""))

	if f.ParentID != nil {
		t.Errorf("blank parent should normalize to nil, got %q", *f.ParentID)
	}
	if got := folderNames(s.GetChildFolders(models.StringPtr(""))); !equalStrings(got, []string{"Loose"}) {
		t.Errorf("GetChildFolders(\"\") = %v, want [Loose]", got)
	}
}

func TestFolderStoreCreateValidation(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		parentID *string
		wantErr  error
	}{
		{name: "empty name", folder: "  ", wantErr: domain.ErrValidation},
		{name: "slash in name", folder: "a/b", wantErr: domain.ErrValidation},
		{name: "missing parent", folder: "Child", parentID: models.StringPtr("nope"), wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, storage := newTestFolderStore(t)
			_, err := s.CreateFolder(context.Background(), tt.folder, tt.parentID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateFolder() error = %v, want %v", err, tt.wantErr)
			}
			if storage.called("CreateFolder") != 0 {
				t.Error("invalid folder should not reach storage")
			}
		})
	}
}

func TestFolderStoreCreateExpandsParent(t *testing.T) {
	s, _ := newTestFolderStore(t)
	work := mustCreate(t, s, "Work", nil)
	s.SetExpanded(work.ID, false)

	sub := mustCreate(t, s, "Sub", &work.ID)
	if !s.IsFolderExpanded(work.ID) || !s.IsFolderExpanded(sub.ID) {
		t.Error("creating a subfolder should expand it and its parent")
	}
}

func TestFolderStoreRename(t *testing.T) {
	s, storage := newTestFolderStore(t)
	f := mustCreate(t, s, "Old", nil)

	renamed, err := s.RenameFolder(context.Background(), f.ID, "  New ")
	if err != nil {
		t.Fatalf("RenameFolder() failed: %v", err)
	}
	if renamed.Name != "New" {
		t.Errorf("name = %q, want New", renamed.Name)
	}

	before := storage.called("SaveFolder")
	if _, err := s.RenameFolder(context.Background(), f.ID, ""); err != nil {
		t.Fatalf("empty rename should be a no-op, got %v", err)
	}
	if _, err := s.RenameFolder(context.Background(), f.ID, "New"); err != nil {
		t.Fatalf("unchanged rename should be a no-op, got %v", err)
	}
	if storage.called("SaveFolder") != before {
		t.Error("no-op renames should not persist")
	}

	if _, err := s.RenameFolder(context.Background(), "missing", "X"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("renaming a missing folder: error = %v, want not found", err)
	}
}

func TestFolderStoreRenameRollsBackOnFailure(t *testing.T) {
	s, storage := newTestFolderStore(t)
	f := mustCreate(t, s, "Keep", nil)
	storage.failOn("SaveFolder")

	_, err := s.RenameFolder(context.Background(), f.ID, "Lost")
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("error = %v, want persistence error", err)
	}
	got, _ := s.Get(f.ID)
	if got.Name != "Keep" {
		t.Errorf("in-memory name = %q after failed save, want Keep", got.Name)
	}
}

func TestFolderStoreMoveRejectsCycles(t *testing.T) {
	s, storage := newTestFolderStore(t)
	a := mustCreate(t, s, "A", nil)
	b := mustCreate(t, s, "B", &a.ID)
	c := mustCreate(t, s, "C", &b.ID)

	tests := []struct {
		name     string
		id       string
		parentID *string
		wantErr  error
	}{
		{name: "into itself", id: a.ID, parentID: &a.ID, wantErr: domain.ErrStructural},
		{name: "into child", id: a.ID, parentID: &b.ID, wantErr: domain.ErrStructural},
		{name: "into grandchild", id: a.ID, parentID: &c.ID, wantErr: domain.ErrStructural},
		{name: "into missing folder", id: a.ID, parentID: models.StringPtr("missing"), wantErr: domain.ErrNotFound},
		{name: "missing folder", id: "missing", parentID: nil, wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := storage.called("SaveFolder")
			_, err := s.MoveFolder(context.Background(), tt.id, tt.parentID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MoveFolder() error = %v, want %v", err, tt.wantErr)
			}
			if storage.called("SaveFolder") != before {
				t.Error("rejected move reached storage")
			}
		})
	}

	if err := s.ValidateForest(); err != nil {
		t.Errorf("forest should still be acyclic: %v", err)
	}
}

func TestFolderStoreMove(t *testing.T) {
	s, _ := newTestFolderStore(t)
	a := mustCreate(t, s, "A", nil)
	b := mustCreate(t, s, "B", nil)
	c := mustCreate(t, s, "C", &a.ID)

	moved, err := s.MoveFolder(context.Background(), c.ID, &b.ID)
	if err != nil {
		t.Fatalf("MoveFolder() failed: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != b.ID {
		t.Errorf("parent = %v, want %s", moved.ParentID, b.ID)
	}
	if got := s.Path(c.ID); got != "B/C" {
		t.Errorf("Path() = %q, want B/C", got)
	}

	if _, err := s.MoveFolder(context.Background(), c.ID, nil); err != nil {
		t.Fatalf("move to root failed: %v", err)
	}
	if got := folderNames(s.GetChildFolders(nil)); len(got) != 3 {
		t.Errorf("root folders = %v, want 3", got)
	}
}

func TestFolderStoreAncestry(t *testing.T) {
	s, _ := newTestFolderStore(t)
	a := mustCreate(t, s, "A", nil)
	b := mustCreate(t, s, "B", &a.ID)
	c := mustCreate(t, s, "C", &b.ID)
	mustCreate(t, s, "D", &a.ID)

	if got := folderNames(s.Ancestors(c.ID)); !equalStrings(got, []string{"B", "A"}) {
		t.Errorf("Ancestors(C) = %v, want [B A]", got)
	}
	if !s.IsDescendant(c.ID, a.ID) {
		t.Error("C should be a descendant of A")
	}
	if s.IsDescendant(a.ID, c.ID) {
		t.Error("A should not be a descendant of C")
	}
	if got := folderNames(s.Descendants(a.ID)); !equalStrings(got, []string{"B", "D", "C"}) {
		t.Errorf("Descendants(A) = %v, want [B D C]", got)
	}
	if got := s.Path(c.ID); got != "A/B/C" {
		t.Errorf("Path(C) = %q, want A/B/C", got)
	}
}

func TestValidateForestDetectsCycles(t *testing.T) {
	tests := []struct {
		name    string
		folders []*models.Folder
		wantErr bool
	}{
		{
			name: "acyclic",
			folders: []*models.Folder{
				{ID: "a"},
				{ID: "b", ParentID: models.StringPtr("a")},
			},
		},
		{
			name: "orphan is fine",
			folders: []*models.Folder{
				{ID: "a", ParentID: models.StringPtr("gone")},
			},
		},
		{
			name: "self parent",
			folders: []*models.Folder{
				{ID: "a", ParentID: models.StringPtr("a")},
			},
			wantErr: true,
		},
		{
			name: "two-folder loop",
			folders: []*models.Folder{
				{ID: "a", ParentID: models.StringPtr("b")},
				{ID: "b", ParentID: models.StringPtr("a")},
			},
			wantErr: true,
		},
		{
			name: "loop below a root",
			folders: []*models.Folder{
				{ID: "root"},
				{ID: "x", ParentID: models.StringPtr("root")},
				{ID: "y", ParentID: models.StringPtr("z")},
				{ID: "z", ParentID: models.StringPtr("y")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateForest(tt.folders)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateForest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrStructural) {
				t.Errorf("expected structural error, got %v", err)
			}
		})
	}
}

func TestFolderStoreMoveConversationToMissingFolder(t *testing.T) {
	s, storage := newTestFolderStore(t)

	err := s.MoveConversationToFolder(context.Background(), "conv-1", models.StringPtr("missing"))
	if !errors.Is(err, domain.ErrValidation) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want validation wrapping not found", err)
	}
	if storage.callCount() != 0 {
		t.Errorf("storage was called %d times, want 0", storage.callCount())
	}
}

func TestFolderStoreToggleAndRestore(t *testing.T) {
	s, _ := newTestFolderStore(t)
	f := mustCreate(t, s, "A", nil)

	if s.ToggleFolderExpansion(f.ID) {
		t.Error("new folders start expanded, so the first toggle collapses")
	}
	if !s.ToggleFolderExpansion(f.ID) {
		t.Error("second toggle should expand")
	}

	s.RestoreExpanded([]string{"unknown"})
	if len(s.ExpandedIDs()) != 0 {
		t.Errorf("unknown ids should be dropped, got %v", s.ExpandedIDs())
	}
	s.RestoreExpanded([]string{f.ID})
	if !s.IsFolderExpanded(f.ID) {
		t.Error("restored folder should be expanded")
	}
}

func TestFolderStoreDelete(t *testing.T) {
	s, _ := newTestFolderStore(t)
	f := mustCreate(t, s, "A", nil)

	if err := s.DeleteFolder(context.Background(), f.ID); err != nil {
		t.Fatalf("DeleteFolder() failed: %v", err)
	}
	if s.Exists(f.ID) || s.IsFolderExpanded(f.ID) {
		t.Error("deleted folder should be gone from the forest and the expansion set")
	}
	if err := s.DeleteFolder(context.Background(), f.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: error = %v, want not found", err)
	}
}

func TestFolderStoreLoad(t *testing.T) {
	storage := newFakeStorage()
	ctx := context.Background()
	parent, _ := storage.Storage.CreateFolder(ctx, models.CreateFolderParams{Name: "P"})
	storage.Storage.CreateFolder(ctx, models.CreateFolderParams{Name: "C", ParentID: &parent.ID})

	s := NewFolderStore(storage, time.Second, testLogger())
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(s.Folders()) != 2 {
		t.Errorf("loaded %d folders, want 2", len(s.Folders()))
	}

	storage.failOn("GetFolders")
	if err := s.Load(ctx); !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("Load() error = %v, want persistence error", err)
	}
}

func TestFolderStoreLoadNormalizesStoredParents(t *testing.T) {
	storage := newFakeStorage()
	ctx := context.Background()
	for _, raw := range []struct{ id, parent string }{
		{"u", "undefined"},
		{"n", "null"},
		{"e", ""},
	} {
		f := folder(raw.id, "Folder "+raw.id, nil)
		f.ParentID = models.StringPtr(raw.parent)
		if err := storage.Storage.SaveFolder(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	s := NewFolderStore(storage, time.Second, testLogger())
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	roots := s.GetChildFolders(nil)
	if len(roots) != 3 {
		t.Fatalf("root folders = %v, want all three", folderNames(roots))
	}
	for _, f := range s.Folders() {
		if f.ParentID != nil {
			t.Errorf("folder %s kept parent %q", f.ID, *f.ParentID)
		}
	}
	if got := s.GetChildFolders(models.StringPtr("undefined")); len(got) != 3 {
		t.Errorf("GetChildFolders(\"undefined\") = %v, want the roots", folderNames(got))
	}
}
