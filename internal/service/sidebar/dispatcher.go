package sidebar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/services"
	"convtree/internal/events"
)

// FolderDeletePolicy decides where the child folders of a deleted folder go.
// Contained conversations always move to root.
type FolderDeletePolicy string

const (
	// PromoteChildren moves child folders to the deleted folder's parent
	PromoteChildren FolderDeletePolicy = "promote"
	// ChildrenToRoot moves child folders to root
	ChildrenToRoot FolderDeletePolicy = "root"
)

// ParseFolderDeletePolicy validates a policy name; empty means promote
func ParseFolderDeletePolicy(s string) (FolderDeletePolicy, error) {
	switch FolderDeletePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PromoteChildren:
		return PromoteChildren, nil
	case ChildrenToRoot:
		return ChildrenToRoot, nil
	}
	return "", fmt.Errorf("unknown folder delete policy %q", s)
}

// Action names used for notices and metrics
const (
	actionCreateConversation = "create_conversation"
	actionSelectConversation = "select_conversation"
	actionRenameConversation = "rename_conversation"
	actionDeleteConversation = "delete_conversation"
	actionToggleStar         = "toggle_star"
	actionUpdateTags         = "update_tags"
	actionAddMessage         = "add_message"
	actionMoveConversation   = "move_conversation"
	actionCreateFolder       = "create_folder"
	actionRenameFolder       = "rename_folder"
	actionDeleteFolder       = "delete_folder"
	actionMoveFolder         = "move_folder"
	actionToggleFolder       = "toggle_folder"
	actionDrop               = "drop"
)

// Action outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeDeclined = "declined"
)

var errDeclined = errors.New("declined by user")

// Dispatcher turns user intents into store mutations. A store commits only
// after the storage collaborator accepted the change; the dispatcher then
// updates the sibling store and announces the change. Failures are logged,
// reported through the Notifier and returned.
type Dispatcher struct {
	conversations *ConversationStore
	folders       *FolderStore
	drag          *DragTracker
	notifier      services.Notifier
	confirm       services.Confirmer
	events        services.EventPublisher
	observer      ActionObserver
	deletePolicy  FolderDeletePolicy
	logger        *slog.Logger
}

var _ services.SidebarService = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithNotifier sets where action failures are reported
func WithNotifier(n services.Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithConfirmer sets the default confirmation prompt for destructive actions
func WithConfirmer(c services.Confirmer) DispatcherOption {
	return func(d *Dispatcher) { d.confirm = c }
}

// WithEvents sets the publisher for change events
func WithEvents(p services.EventPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.events = p }
}

// WithObserver sets the action metrics observer
func WithObserver(o ActionObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithFolderDeletePolicy sets where child folders of a deleted folder go
func WithFolderDeletePolicy(p FolderDeletePolicy) DispatcherOption {
	return func(d *Dispatcher) { d.deletePolicy = p }
}

// NewDispatcher wires a dispatcher over the two stores. Without options it
// confirms every destructive action and publishes nowhere.
func NewDispatcher(conversations *ConversationStore, folders *FolderStore, drag *DragTracker, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		conversations: conversations,
		folders:       folders,
		drag:          drag,
		confirm:       services.AlwaysConfirm,
		events:        nopPublisher{},
		observer:      nopObserver{},
		deletePolicy:  PromoteChildren,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = NewBusNotifier(d.events, logger)
	}
	if d.drag == nil {
		d.drag = &DragTracker{}
	}
	return d
}

// CreateConversation creates a conversation, optionally inside folderID, and selects it
func (d *Dispatcher) CreateConversation(ctx context.Context, title string, folderID *string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := d.run(ctx, actionCreateConversation, func() error {
		folderID = models.NormalizeParentID(folderID)
		if folderID != nil && !d.folders.Exists(*folderID) {
			return domain.NewValidation("cannot create conversation in missing folder", domain.NewNotFound("folder", *folderID))
		}

		var err error
		conv, err = d.conversations.Create(ctx, title, folderID)
		if err != nil {
			return err
		}
		if _, err := d.conversations.Select(conv.ID); err != nil {
			return err
		}

		d.changed(events.TopicConversationsChanged, "created", "conversation", conv.ID)
		d.events.Publish(events.TopicConversationSelected, events.Selection{ConversationID: conv.ID})
		return nil
	})
	return conv, err
}

// SelectConversation makes id the current conversation
func (d *Dispatcher) SelectConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := d.run(ctx, actionSelectConversation, func() error {
		var err error
		conv, err = d.conversations.Select(id)
		if err != nil {
			return err
		}
		d.events.Publish(events.TopicConversationSelected, events.Selection{ConversationID: id})
		d.events.Publish(events.TopicTreeInvalidated, events.Change{Action: "selected", ResourceType: "conversation", ResourceID: id})
		return nil
	})
	return conv, err
}

// RenameConversation changes a conversation title
func (d *Dispatcher) RenameConversation(ctx context.Context, id, title string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := d.run(ctx, actionRenameConversation, func() error {
		var err error
		conv, err = d.conversations.Rename(ctx, id, title)
		if err != nil {
			return err
		}
		d.changed(events.TopicConversationsChanged, "renamed", "conversation", id)
		return nil
	})
	return conv, err
}

// DeleteConversation deletes id after confirmation. It reports false, with
// no error, when the user declined.
func (d *Dispatcher) DeleteConversation(ctx context.Context, id string) (bool, error) {
	err := d.run(ctx, actionDeleteConversation, func() error {
		conv, err := d.conversations.Get(id)
		if err != nil {
			return err
		}

		ok, err := d.confirmAction(ctx, services.Confirmation{
			Action:       actionDeleteConversation,
			ResourceType: "conversation",
			ResourceID:   id,
			Message:      fmt.Sprintf("Delete conversation %q?", conv.Title),
		})
		if err != nil {
			return err
		}
		if !ok {
			return errDeclined
		}

		wasSelected := d.isSelected(id)
		if err := d.conversations.Delete(ctx, id); err != nil {
			return err
		}

		d.changed(events.TopicConversationsChanged, "deleted", "conversation", id)
		if wasSelected {
			d.events.Publish(events.TopicConversationSelected, events.Selection{})
		}
		return nil
	})
	if errors.Is(err, errDeclined) {
		return false, nil
	}
	return err == nil, err
}

// ToggleStar flips the starred flag of id
func (d *Dispatcher) ToggleStar(ctx context.Context, id string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := d.run(ctx, actionToggleStar, func() error {
		var err error
		conv, err = d.conversations.ToggleStar(ctx, id)
		if err != nil {
			return err
		}
		d.changed(events.TopicConversationsChanged, "starred", "conversation", id)
		return nil
	})
	return conv, err
}

// UpdateTags replaces the tags of id
func (d *Dispatcher) UpdateTags(ctx context.Context, id string, tags []string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := d.run(ctx, actionUpdateTags, func() error {
		var err error
		conv, err = d.conversations.UpdateTags(ctx, id, tags)
		if err != nil {
			return err
		}
		d.changed(events.TopicConversationsChanged, "tagged", "conversation", id)
		return nil
	})
	return conv, err
}

// AddMessage appends a message to conversationID
func (d *Dispatcher) AddMessage(ctx context.Context, conversationID string, input services.MessageInput) (*models.Message, error) {
	var msg *models.Message
	err := d.run(ctx, actionAddMessage, func() error {
		var err error
		msg, err = d.conversations.AddMessage(ctx, conversationID, input)
		if err != nil {
			return err
		}
		d.changed(events.TopicConversationsChanged, "message_added", "conversation", conversationID)
		return nil
	})
	return msg, err
}

// MoveConversation files id under folderID (nil = root). A missing folder is a
// ValidationError and nothing is persisted.
func (d *Dispatcher) MoveConversation(ctx context.Context, id string, folderID *string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := d.run(ctx, actionMoveConversation, func() error {
		var err error
		conv, err = d.moveConversation(ctx, id, folderID)
		return err
	})
	return conv, err
}

func (d *Dispatcher) moveConversation(ctx context.Context, id string, folderID *string) (*models.Conversation, error) {
	if _, err := d.conversations.Get(id); err != nil {
		return nil, err
	}
	if err := d.folders.MoveConversationToFolder(ctx, id, folderID); err != nil {
		return nil, err
	}
	conv, err := d.conversations.SetFolder(id, folderID)
	if err != nil {
		return nil, err
	}
	d.changed(events.TopicConversationsChanged, "moved", "conversation", id)
	return conv, nil
}

// CreateFolder creates a folder under parentID (nil = root)
func (d *Dispatcher) CreateFolder(ctx context.Context, name string, parentID *string) (*models.Folder, error) {
	var folder *models.Folder
	err := d.run(ctx, actionCreateFolder, func() error {
		var err error
		folder, err = d.folders.CreateFolder(ctx, name, parentID)
		if err != nil {
			return err
		}
		d.changed(events.TopicFoldersChanged, "created", "folder", folder.ID)
		return nil
	})
	return folder, err
}

// RenameFolder renames id; an empty or unchanged name changes nothing
func (d *Dispatcher) RenameFolder(ctx context.Context, id, name string) (*models.Folder, error) {
	var folder *models.Folder
	err := d.run(ctx, actionRenameFolder, func() error {
		before, err := d.folders.Get(id)
		if err != nil {
			return err
		}
		folder, err = d.folders.RenameFolder(ctx, id, name)
		if err != nil {
			return err
		}
		if folder.Name != before.Name {
			d.changed(events.TopicFoldersChanged, "renamed", "folder", id)
		}
		return nil
	})
	return folder, err
}

// DeleteFolder deletes id after confirmation. Contained conversations move to
// root and child folders are rehomed per the delete policy; every rehoming is
// persisted before the folder itself is deleted.
func (d *Dispatcher) DeleteFolder(ctx context.Context, id string) (bool, error) {
	err := d.run(ctx, actionDeleteFolder, func() error {
		folder, err := d.folders.Get(id)
		if err != nil {
			return err
		}

		ok, err := d.confirmAction(ctx, services.Confirmation{
			Action:       actionDeleteFolder,
			ResourceType: "folder",
			ResourceID:   id,
			Message:      fmt.Sprintf("Delete folder %q? Its conversations move to the top level.", folder.Name),
		})
		if err != nil {
			return err
		}
		if !ok {
			return errDeclined
		}

		var movedConversations, movedFolders []string
		stopped := func(err error) error {
			if len(movedConversations) == 0 && len(movedFolders) == 0 {
				return err
			}
			if len(movedConversations) > 0 {
				d.events.Publish(events.TopicConversationsChanged, events.Change{Action: "unfiled", ResourceType: "folder", ResourceID: id})
			}
			d.events.Publish(events.TopicTreeInvalidated, events.Change{Action: "partially-deleted", ResourceType: "folder", ResourceID: id})
			return fmt.Errorf("folder %s kept; already moved conversations %v and folders %v: %w",
				id, movedConversations, movedFolders, err)
		}

		for _, conv := range d.conversations.InFolder(id) {
			if err := d.folders.MoveConversationToFolder(ctx, conv.ID, nil); err != nil {
				return stopped(err)
			}
			if _, err := d.conversations.SetFolder(conv.ID, nil); err != nil {
				return stopped(err)
			}
			movedConversations = append(movedConversations, conv.ID)
		}

		var newParent *string
		if d.deletePolicy == PromoteChildren {
			newParent = models.NormalizeParentID(folder.ParentID)
		}
		for _, child := range d.folders.GetChildFolders(&id) {
			if _, err := d.folders.MoveFolder(ctx, child.ID, newParent); err != nil {
				return stopped(err)
			}
			movedFolders = append(movedFolders, child.ID)
		}

		if err := d.folders.DeleteFolder(ctx, id); err != nil {
			return stopped(err)
		}

		d.events.Publish(events.TopicConversationsChanged, events.Change{Action: "unfiled", ResourceType: "folder", ResourceID: id})
		d.changed(events.TopicFoldersChanged, "deleted", "folder", id)
		return nil
	})
	if errors.Is(err, errDeclined) {
		return false, nil
	}
	return err == nil, err
}

// MoveFolder reparents id under parentID (nil = root)
func (d *Dispatcher) MoveFolder(ctx context.Context, id string, parentID *string) (*models.Folder, error) {
	var folder *models.Folder
	err := d.run(ctx, actionMoveFolder, func() error {
		var err error
		folder, err = d.moveFolder(ctx, id, parentID)
		return err
	})
	return folder, err
}

func (d *Dispatcher) moveFolder(ctx context.Context, id string, parentID *string) (*models.Folder, error) {
	folder, err := d.folders.MoveFolder(ctx, id, parentID)
	if err != nil {
		return nil, err
	}
	d.changed(events.TopicFoldersChanged, "moved", "folder", id)
	return folder, nil
}

// ToggleFolder flips the expansion state of id and returns the new state
func (d *Dispatcher) ToggleFolder(ctx context.Context, id string) (bool, error) {
	var expanded bool
	err := d.run(ctx, actionToggleFolder, func() error {
		if !d.folders.Exists(id) {
			return domain.NewNotFound("folder", id)
		}
		expanded = d.folders.ToggleFolderExpansion(id)
		d.events.Publish(events.TopicTreeInvalidated, events.Change{Action: "toggled", ResourceType: "folder", ResourceID: id})
		return nil
	})
	return expanded, err
}

// StartDrag marks payload as being dragged
func (d *Dispatcher) StartDrag(payload models.DragPayload) {
	if ended := d.drag.Start(payload); ended != nil {
		d.logger.Debug("drag superseded", "previous", models.DragKey(ended), "current", models.DragKey(payload))
	}
}

// EndDrag returns payload to idle
func (d *Dispatcher) EndDrag(payload models.DragPayload) {
	d.drag.End(payload)
}

// Drop executes the intent of dropping payload on target. The drag always ends.
func (d *Dispatcher) Drop(ctx context.Context, payload models.DragPayload, target models.DropTarget) (models.DropIntent, error) {
	defer d.drag.End(payload)

	var intent models.DropIntent
	err := d.run(ctx, actionDrop, func() error {
		var err error
		intent, err = ResolveDrop(d.folders, payload, target)
		if err != nil {
			return err
		}

		switch in := intent.(type) {
		case models.MoveConversationIntent:
			_, err = d.moveConversation(ctx, in.ConversationID, in.FolderID)
		case models.ReparentFolderIntent:
			_, err = d.moveFolder(ctx, in.FolderID, in.ParentID)
		case models.NoopIntent:
			d.logger.Debug("drop changed nothing", "reason", in.Reason)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// run executes one action, recording its outcome and reporting failures
func (d *Dispatcher) run(ctx context.Context, action string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	switch {
	case err == nil:
		d.observer.ObserveAction(action, OutcomeSuccess, elapsed)
	case errors.Is(err, errDeclined):
		d.observer.ObserveAction(action, OutcomeDeclined, elapsed)
		d.logger.Info("action declined", "action", action)
	default:
		d.observer.ObserveAction(action, OutcomeError, elapsed)
		d.notifier.Notify(ctx, services.Notice{
			Level:   noticeLevel(err),
			Action:  action,
			Message: err.Error(),
			Err:     err,
		})
	}
	return err
}

func (d *Dispatcher) confirmAction(ctx context.Context, c services.Confirmation) (bool, error) {
	confirm := confirmerFromContext(ctx)
	if confirm == nil {
		confirm = d.confirm
	}
	ok, err := confirm(ctx, c)
	if err != nil {
		return false, fmt.Errorf("confirm %s: %w", c.Action, err)
	}
	return ok, nil
}

func (d *Dispatcher) isSelected(id string) bool {
	sel := d.conversations.Selected()
	return sel != nil && *sel == id
}

// changed announces a committed mutation and invalidates the rendered tree
func (d *Dispatcher) changed(topic, action, resourceType, id string) {
	change := events.Change{Action: action, ResourceType: resourceType, ResourceID: id}
	d.events.Publish(topic, change)
	d.events.Publish(events.TopicTreeInvalidated, change)
}
