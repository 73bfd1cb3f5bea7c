package sidebar

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"convtree/internal/config"
	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
)

var folderNamePattern = regexp.MustCompile(`^[^/]+$`)

// FolderStore holds the folder forest and the per-folder expansion state.
// It is not safe for concurrent use; the owning Workspace serializes access.
type FolderStore struct {
	storage  repositories.Storage
	folders  []*models.Folder
	expanded map[string]struct{}
	timeout  time.Duration
	now      Clock
	logger   *slog.Logger
}

// NewFolderStore creates an empty folder store backed by storage
func NewFolderStore(storage repositories.Storage, timeout time.Duration, logger *slog.Logger) *FolderStore {
	return &FolderStore{
		storage:  storage,
		expanded: make(map[string]struct{}),
		timeout:  timeout,
		now:      systemClock,
		logger:   logger,
	}
}

// Load replaces the in-memory forest with the stored folders
func (s *FolderStore) Load(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	folders, err := s.storage.GetFolders(ctx)
	if err != nil {
		return domain.WrapPersistence("load folders", err)
	}

	s.folders = make([]*models.Folder, 0, len(folders))
	for _, f := range folders {
		if f == nil {
			continue
		}
		f.ParentID = models.NormalizeParentID(f.ParentID)
		s.folders = append(s.folders, f)
	}

	// Forget expansion state of folders that no longer exist
	for id := range s.expanded {
		if s.find(id) == nil {
			delete(s.expanded, id)
		}
	}

	s.logger.Debug("folders loaded", "count", len(s.folders))
	return nil
}

// Folders returns a copy of every folder in load/creation order
func (s *FolderStore) Folders() []*models.Folder {
	out := make([]*models.Folder, len(s.folders))
	for i, f := range s.folders {
		out[i] = stageFolder(f)
	}
	return out
}

// Get returns a copy of the folder with id
func (s *FolderStore) Get(id string) (*models.Folder, error) {
	f := s.find(id)
	if f == nil {
		return nil, domain.NewNotFound("folder", id)
	}
	return stageFolder(f), nil
}

// Exists reports whether a folder with id is loaded
func (s *FolderStore) Exists(id string) bool {
	return s.find(id) != nil
}

// GetChildFolders returns the folders whose normalized parent equals parentID
func (s *FolderStore) GetChildFolders(parentID *string) []*models.Folder {
	parentID = models.NormalizeParentID(parentID)
	var out []*models.Folder
	for _, f := range s.folders {
		if models.SameParent(f.ParentID, parentID) {
			out = append(out, stageFolder(f))
		}
	}
	return out
}

// ToggleFolderExpansion flips the expansion state of id
func (s *FolderStore) ToggleFolderExpansion(id string) bool {
	if _, ok := s.expanded[id]; ok {
		delete(s.expanded, id)
		return false
	}
	s.expanded[id] = struct{}{}
	return true
}

// SetExpanded forces the expansion state of id
func (s *FolderStore) SetExpanded(id string, expanded bool) {
	if expanded {
		s.expanded[id] = struct{}{}
	} else {
		delete(s.expanded, id)
	}
}

// IsFolderExpanded reports whether id is expanded
func (s *FolderStore) IsFolderExpanded(id string) bool {
	_, ok := s.expanded[id]
	return ok
}

// ExpandedIDs returns the expanded folder ids, sorted
func (s *FolderStore) ExpandedIDs() []string {
	ids := make([]string, 0, len(s.expanded))
	for id := range s.expanded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RestoreExpanded replaces the expansion set, ignoring unknown folders
func (s *FolderStore) RestoreExpanded(ids []string) {
	s.expanded = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if s.find(id) != nil {
			s.expanded[id] = struct{}{}
		}
	}
}

// CreateFolder persists a new folder under parentID (nil = root), appends it
// and expands both the new folder and its parent.
func (s *FolderStore) CreateFolder(ctx context.Context, name string, parentID *string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if err := validateFolderName(name); err != nil {
		return nil, err
	}

	parentID = models.NormalizeParentID(parentID)
	if parentID != nil && s.find(*parentID) == nil {
		return nil, domain.NewValidation("cannot create folder in missing parent", domain.NewNotFound("folder", *parentID))
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	folder, err := s.storage.CreateFolder(ctx, models.CreateFolderParams{Name: name, ParentID: parentID})
	if err != nil {
		return nil, domain.WrapPersistence("create folder", err)
	}
	folder.ParentID = models.NormalizeParentID(folder.ParentID)

	s.folders = append(s.folders, folder)
	s.expanded[folder.ID] = struct{}{}
	if folder.ParentID != nil {
		s.expanded[*folder.ParentID] = struct{}{}
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"parent_id", folder.ParentID,
	)

	return stageFolder(folder), nil
}

// RenameFolder renames id. An empty or unchanged name is a no-op.
func (s *FolderStore) RenameFolder(ctx context.Context, id, newName string) (*models.Folder, error) {
	current := s.find(id)
	if current == nil {
		return nil, domain.NewNotFound("folder", id)
	}

	newName = strings.TrimSpace(newName)
	if newName == "" || newName == current.Name {
		return stageFolder(current), nil
	}
	if err := validateFolderName(newName); err != nil {
		return nil, err
	}

	staged := stageFolder(current)
	staged.Name = newName
	staged.ModifiedAt = s.now()

	if err := s.save(ctx, "rename folder", staged); err != nil {
		return nil, err
	}
	s.commit(staged)

	s.logger.Info("folder renamed", "id", id, "name", newName)
	return stageFolder(staged), nil
}

// DeleteFolder removes id from storage, the forest and the expansion set.
// Contained conversations and child folders are left for the caller to rehome.
func (s *FolderStore) DeleteFolder(ctx context.Context, id string) error {
	if s.find(id) == nil {
		return domain.NewNotFound("folder", id)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.storage.DeleteFolder(ctx, id); err != nil {
		return domain.WrapPersistence("delete folder", err)
	}

	for i, f := range s.folders {
		if f.ID == id {
			s.folders = append(s.folders[:i], s.folders[i+1:]...)
			break
		}
	}
	delete(s.expanded, id)

	s.logger.Info("folder deleted", "id", id)
	return nil
}

// MoveFolder reparents id under newParentID (nil = root). Moving a folder
// into itself or one of its descendants is a StructuralError.
func (s *FolderStore) MoveFolder(ctx context.Context, id string, newParentID *string) (*models.Folder, error) {
	current := s.find(id)
	if current == nil {
		return nil, domain.NewNotFound("folder", id)
	}

	newParentID = models.NormalizeParentID(newParentID)
	if err := s.ValidateReparent(id, newParentID); err != nil {
		return nil, err
	}
	if models.SameParent(current.ParentID, newParentID) {
		return stageFolder(current), nil
	}

	staged := stageFolder(current)
	staged.ParentID = newParentID
	staged.ModifiedAt = s.now()

	if err := s.save(ctx, "move folder", staged); err != nil {
		return nil, err
	}
	s.commit(staged)
	if newParentID != nil {
		s.expanded[*newParentID] = struct{}{}
	}

	s.logger.Info("folder moved", "id", id, "parent_id", newParentID)
	return stageFolder(staged), nil
}

// ValidateReparent checks that placing id under newParentID keeps the forest acyclic
func (s *FolderStore) ValidateReparent(id string, newParentID *string) error {
	newParentID = models.NormalizeParentID(newParentID)
	if newParentID == nil {
		return nil
	}
	if *newParentID == id {
		return &domain.StructuralError{FolderID: id, Message: "cannot move folder into itself"}
	}
	if s.find(*newParentID) == nil {
		return domain.NewNotFound("folder", *newParentID)
	}
	if s.IsDescendant(*newParentID, id) {
		return &domain.StructuralError{FolderID: id, Message: "cannot move folder into its own descendant"}
	}
	return nil
}

// MoveConversationToFolder persists a conversation's folder link. folderID must
// name a loaded folder (or be nil for root); otherwise nothing is persisted.
// The Conversation Store is not touched.
func (s *FolderStore) MoveConversationToFolder(ctx context.Context, conversationID string, folderID *string) error {
	folderID = models.NormalizeParentID(folderID)
	if folderID != nil && s.find(*folderID) == nil {
		return domain.NewValidation("cannot move conversation to missing folder", domain.NewNotFound("folder", *folderID))
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.storage.MoveConversationToFolder(ctx, conversationID, folderID); err != nil {
		return domain.WrapPersistence("move conversation", err)
	}

	s.logger.Info("conversation moved", "conversation_id", conversationID, "folder_id", folderID)
	return nil
}

// Ancestors returns the chain of parents of id, nearest first.
// The walk stops at a missing parent and never loops.
func (s *FolderStore) Ancestors(id string) []*models.Folder {
	var out []*models.Folder
	visited := map[string]struct{}{id: {}}

	f := s.find(id)
	for f != nil && f.ParentID != nil {
		if _, seen := visited[*f.ParentID]; seen {
			break
		}
		visited[*f.ParentID] = struct{}{}
		parent := s.find(*f.ParentID)
		if parent == nil {
			break
		}
		out = append(out, stageFolder(parent))
		f = parent
	}
	return out
}

// IsDescendant reports whether candidate sits somewhere below ancestor
func (s *FolderStore) IsDescendant(candidate, ancestor string) bool {
	for _, a := range s.Ancestors(candidate) {
		if a.ID == ancestor {
			return true
		}
	}
	return false
}

// Descendants returns every folder below id, breadth-first
func (s *FolderStore) Descendants(id string) []*models.Folder {
	var out []*models.Folder
	visited := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range s.GetChildFolders(&next) {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out
}

// Path returns the display path of id ("Work/Clients/Acme")
func (s *FolderStore) Path(id string) string {
	f := s.find(id)
	if f == nil {
		return ""
	}
	ancestors := s.Ancestors(id)
	parts := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parts = append(parts, ancestors[i].Name)
	}
	parts = append(parts, f.Name)
	return strings.Join(parts, "/")
}

// ValidateForest reports the first parent cycle found in the loaded folders
func (s *FolderStore) ValidateForest() error {
	return validateForest(s.folders)
}

func validateForest(folders []*models.Folder) error {
	byID := make(map[string]*models.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}

	// Folders already proven to reach a root (or an orphan)
	clean := make(map[string]struct{}, len(folders))

	for _, start := range folders {
		visited := make(map[string]struct{})
		for f := start; f != nil; {
			if _, ok := clean[f.ID]; ok {
				break
			}
			if _, seen := visited[f.ID]; seen {
				return &domain.StructuralError{FolderID: f.ID, Message: "folder is its own ancestor"}
			}
			visited[f.ID] = struct{}{}

			parentID := models.NormalizeParentID(f.ParentID)
			if parentID == nil {
				break
			}
			f = byID[*parentID]
		}
		for id := range visited {
			clean[id] = struct{}{}
		}
	}
	return nil
}

func (s *FolderStore) find(id string) *models.Folder {
	for _, f := range s.folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (s *FolderStore) commit(folder *models.Folder) {
	for i, f := range s.folders {
		if f.ID == folder.ID {
			s.folders[i] = folder
			return
		}
	}
}

func (s *FolderStore) save(ctx context.Context, op string, folder *models.Folder) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.storage.SaveFolder(ctx, folder); err != nil {
		return domain.WrapPersistence(op, err)
	}
	return nil
}

func validateFolderName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, config.MaxFolderNameLength),
		validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
	)
	if err != nil {
		return domain.NewValidation("invalid folder name", err)
	}
	return nil
}
