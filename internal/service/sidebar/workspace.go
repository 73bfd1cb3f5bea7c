package sidebar

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"convtree/internal/config"
	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
	"convtree/internal/domain/services"
	"convtree/internal/events"
)

// RenderObserver is implemented by observers that also count renders
type RenderObserver interface {
	ObserveRender(err error)
}

// WorkspaceConfig wires one owner's sidebar
type WorkspaceConfig struct {
	OwnerID      string
	Storage      repositories.Storage
	Timeout      time.Duration
	Renderer     *TreeRenderer
	DeletePolicy FolderDeletePolicy
	Confirmer    services.Confirmer
	Observer     ActionObserver
	Logger       *slog.Logger
}

// Workspace is one owner's sidebar session: both stores, the tag selection,
// the view state and the drag tracker. Every exported method holds the
// workspace lock, so operations on a workspace run one at a time.
type Workspace struct {
	mu sync.Mutex

	ownerID       string
	conversations *ConversationStore
	folders       *FolderStore
	tags          TagIndex
	view          models.ViewState
	drag          *DragTracker
	dispatcher    *Dispatcher
	renderer      *TreeRenderer
	bus           *events.Bus
	observer      ActionObserver
	logger        *slog.Logger
}

// NewWorkspace creates an unloaded workspace
func NewWorkspace(cfg WorkspaceConfig) *Workspace {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("owner_id", cfg.OwnerID)

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewTreeRenderer(nil, HideEmptyWhenFiltering)
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	bus := events.NewBus(logger)
	conversations := NewConversationStore(cfg.Storage, cfg.Timeout, logger)
	folders := NewFolderStore(cfg.Storage, cfg.Timeout, logger)
	drag := &DragTracker{}

	opts := []DispatcherOption{
		WithEvents(bus),
		WithNotifier(NewBusNotifier(bus, logger)),
		WithObserver(observer),
	}
	if cfg.DeletePolicy != "" {
		opts = append(opts, WithFolderDeletePolicy(cfg.DeletePolicy))
	}
	if cfg.Confirmer != nil {
		opts = append(opts, WithConfirmer(cfg.Confirmer))
	}

	return &Workspace{
		ownerID:       cfg.OwnerID,
		conversations: conversations,
		folders:       folders,
		view:          models.DefaultViewState(),
		drag:          drag,
		dispatcher:    NewDispatcher(conversations, folders, drag, logger, opts...),
		renderer:      renderer,
		bus:           bus,
		observer:      observer,
		logger:        logger,
	}
}

// OwnerID returns the workspace owner
func (w *Workspace) OwnerID() string {
	return w.ownerID
}

// Bus returns the workspace event bus
func (w *Workspace) Bus() *events.Bus {
	return w.bus
}

// Load reads folders then conversations from storage
func (w *Workspace) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.folders.Load(ctx); err != nil {
		return err
	}
	if err := w.conversations.Load(ctx); err != nil {
		return err
	}
	if err := w.folders.ValidateForest(); err != nil {
		// Keep serving; Render reports the cycle until it is repaired
		w.logger.Warn("stored folders contain a cycle", "error", err)
	}

	w.logger.Info("workspace loaded",
		"folders", len(w.folders.Folders()),
		"conversations", w.conversations.Len(),
	)
	w.bus.Publish(events.TopicTreeInvalidated, events.Change{Action: "loaded", ResourceType: "workspace", ResourceID: w.ownerID})
	return nil
}

// Do runs fn with the dispatcher while holding the workspace lock
func (w *Workspace) Do(fn func(s services.SidebarService) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.dispatcher)
}

// RenderOptions adjusts a single render
type RenderOptions struct {
	ExpandAll bool
	Policy    EmptyFolderPolicy
}

// Render describes the visible tree for the current state
func (w *Workspace) Render() (*models.VisibleTree, error) {
	return w.RenderWith(RenderOptions{})
}

// RenderWith renders with per-call options
func (w *Workspace) RenderWith(opts RenderOptions) (*models.VisibleTree, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	renderer := w.renderer
	if opts.Policy != "" && opts.Policy != renderer.Policy() {
		renderer = renderer.WithPolicy(opts.Policy)
	}

	tree, err := renderer.Render(RenderInput{
		Folders:       w.folders,
		Conversations: w.conversations.List(),
		View:          w.viewLocked(),
		SelectedID:    w.conversations.Selected(),
		ExpandAll:     opts.ExpandAll,
	})
	if ro, ok := w.observer.(RenderObserver); ok {
		ro.ObserveRender(err)
	}
	if err != nil {
		w.logger.Error("failed to render tree", "error", err)
		return nil, err
	}
	return tree, nil
}

// View returns the current view state
func (w *Workspace) View() models.ViewState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Workspace) viewLocked() models.ViewState {
	v := w.view
	v.SelectedTag = w.tags.Selected()
	return v
}

// UpdateView applies patch and returns the new view state
func (w *Workspace) UpdateView(patch models.ViewPatch) (models.ViewState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := patch.Apply(w.viewLocked())
	next.Query = strings.TrimSpace(next.Query)
	if err := validateQuery(next.Query); err != nil {
		return models.ViewState{}, err
	}

	w.tags.Select(next.SelectedTag)
	next.SelectedTag = nil
	w.view = next

	w.bus.Publish(events.TopicTreeInvalidated, events.Change{Action: "view_changed", ResourceType: "view", ResourceID: w.ownerID})
	return w.viewLocked(), nil
}

// SetQuery sets the search text
func (w *Workspace) SetQuery(query string) error {
	_, err := w.UpdateView(models.ViewPatch{Query: &query})
	return err
}

// SetCategory sets the filter category
func (w *Workspace) SetCategory(category models.FilterCategory) error {
	_, err := w.UpdateView(models.ViewPatch{Category: &category})
	return err
}

// SetSort sets the sort key
func (w *Workspace) SetSort(key models.SortKey) error {
	_, err := w.UpdateView(models.ViewPatch{Sort: &key})
	return err
}

// SelectTag sets the selected tag; nil clears it
func (w *Workspace) SelectTag(tag *string) error {
	_, err := w.UpdateView(models.ViewPatch{TagSet: true, Tag: tag})
	return err
}

// Tags returns per-tag usage counts over every conversation
func (w *Workspace) Tags() []TagCount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return TagCounts(w.conversations.List())
}

// Conversations returns copies of the conversations passing the current view
func (w *Workspace) Conversations() []*models.Conversation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneConversations(w.renderer.engine.FilterAndSort(w.conversations.List(), w.viewLocked()))
}

// Conversation returns a copy of one conversation
func (w *Workspace) Conversation(id string) (*models.Conversation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conversations.Get(id)
}

// Folders returns copies of every folder
func (w *Workspace) Folders() []*models.Folder {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.folders.Folders()
}

// DragState reports the drag state of payload
func (w *Workspace) DragState(p models.DragPayload) DragState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drag.State(p)
}

// Snapshot captures the restorable session state
func (w *Workspace) Snapshot() *models.SessionSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &models.SessionSnapshot{
		View:            w.viewLocked(),
		ExpandedFolders: w.folders.ExpandedIDs(),
		SelectedID:      w.conversations.Selected(),
	}
}

// Restore applies a saved session. Unknown folders, conversations and enum
// values are dropped rather than rejected.
func (w *Workspace) Restore(snap *models.SessionSnapshot) {
	if snap == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	view := models.DefaultViewState()
	view.Query = snap.View.Query
	if c, err := models.ParseFilterCategory(string(snap.View.Category)); err == nil {
		view.Category = c
	}
	if s, err := models.ParseSortKey(string(snap.View.Sort)); err == nil {
		view.Sort = s
	}
	w.view = view
	w.tags.Select(snap.View.SelectedTag)

	w.folders.RestoreExpanded(snap.ExpandedFolders)
	if snap.SelectedID != nil {
		if _, err := w.conversations.Select(*snap.SelectedID); err != nil {
			w.conversations.ClearSelection()
		}
	}
}

func validateQuery(q string) error {
	err := validation.Validate(q, validation.RuneLength(0, config.MaxSearchQueryLength))
	if err != nil {
		return domain.NewValidation("invalid search query", err)
	}
	return nil
}
