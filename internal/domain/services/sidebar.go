package services

import (
	"context"
	"encoding/json"

	"convtree/internal/domain/models"
)

// NoticeLevel grades a user-visible notice
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a non-fatal, user-visible report of an action outcome
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Action  string      `json:"action"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

// Notifier surfaces notices to the user
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// Confirmation describes a destructive action awaiting the user's consent
type Confirmation struct {
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Message      string `json:"message"`
}

// Confirmer asks the user to approve a destructive action.
// Returning false cancels the action without error.
type Confirmer func(ctx context.Context, c Confirmation) (bool, error)

// AlwaysConfirm approves every action
func AlwaysConfirm(context.Context, Confirmation) (bool, error) { return true, nil }

// NeverConfirm declines every action
func NeverConfirm(context.Context, Confirmation) (bool, error) { return false, nil }

// EventPublisher publishes sidebar events by topic
type EventPublisher interface {
	Publish(topic string, payload any)
}

// SidebarService is the set of user intents a sidebar session accepts.
// Implementations are not safe for concurrent use; callers serialize access.
type SidebarService interface {
	CreateConversation(ctx context.Context, title string, folderID *string) (*models.Conversation, error)
	SelectConversation(ctx context.Context, id string) (*models.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) (*models.Conversation, error)
	// DeleteConversation reports false without error when the user declines
	DeleteConversation(ctx context.Context, id string) (bool, error)
	ToggleStar(ctx context.Context, id string) (*models.Conversation, error)
	UpdateTags(ctx context.Context, id string, tags []string) (*models.Conversation, error)
	AddMessage(ctx context.Context, conversationID string, input MessageInput) (*models.Message, error)
	MoveConversation(ctx context.Context, id string, folderID *string) (*models.Conversation, error)

	CreateFolder(ctx context.Context, name string, parentID *string) (*models.Folder, error)
	RenameFolder(ctx context.Context, id, name string) (*models.Folder, error)
	DeleteFolder(ctx context.Context, id string) (bool, error)
	MoveFolder(ctx context.Context, id string, parentID *string) (*models.Folder, error)
	ToggleFolder(ctx context.Context, id string) (bool, error)

	StartDrag(payload models.DragPayload)
	EndDrag(payload models.DragPayload)
	Drop(ctx context.Context, payload models.DragPayload, target models.DropTarget) (models.DropIntent, error)
}

// MessageInput is a message to append to a conversation
type MessageInput struct {
	Role        string                     `json:"role"`
	Content     string                     `json:"content"`
	ToolCalls   []models.ToolCall          `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult        `json:"tool_results,omitempty"`
	Extensions  map[string]json.RawMessage `json:"extensions,omitempty"`
}
