package repositories

import (
	"context"
	"time"

	"convtree/internal/domain/models"
)

// Storage is the persistence collaborator for one owner's conversations and folders.
// Every call may fail; missing rows are reported with domain.ErrNotFound.
type Storage interface {
	// GetConversations returns every conversation with its messages
	GetConversations(ctx context.Context) ([]*models.Conversation, error)

	// GetConversation returns a single conversation
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)

	// CreateConversation creates and returns an empty conversation
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)

	// SaveConversation upserts the conversation and its messages
	SaveConversation(ctx context.Context, conv *models.Conversation) error

	// DeleteConversation removes a conversation and its messages
	DeleteConversation(ctx context.Context, id string) error

	// AddMessage appends a message and bumps the conversation's modified time
	AddMessage(ctx context.Context, conversationID string, msg models.Message) error

	// RenameConversation updates the title. modifiedAt is the caller's stamp;
	// the stored modified time never moves backwards.
	RenameConversation(ctx context.Context, id, title string, modifiedAt time.Time) error

	// ToggleConversationStar flips the starred flag and returns the new value
	ToggleConversationStar(ctx context.Context, id string) (bool, error)

	// UpdateConversationTags replaces the tag list, stamping modifiedAt like RenameConversation
	UpdateConversationTags(ctx context.Context, id string, tags []string, modifiedAt time.Time) error

	// GetFolders returns every folder (flat list)
	GetFolders(ctx context.Context) ([]*models.Folder, error)

	// CreateFolder creates and returns a folder
	CreateFolder(ctx context.Context, params models.CreateFolderParams) (*models.Folder, error)

	// SaveFolder upserts a folder (rename, reparent)
	SaveFolder(ctx context.Context, folder *models.Folder) error

	// DeleteFolder removes a folder row. It does not touch children.
	DeleteFolder(ctx context.Context, id string) error

	// MoveConversationToFolder sets the conversation's folder (nil = root)
	MoveConversationToFolder(ctx context.Context, conversationID string, folderID *string) error
}

// StorageProvider hands out per-owner storage
type StorageProvider interface {
	ForOwner(ownerID string) Storage
}

// ViewStateStore persists sidebar sessions between server restarts
type ViewStateStore interface {
	// Load returns the saved snapshot, or nil when none exists
	Load(ctx context.Context, ownerID string) (*models.SessionSnapshot, error)

	// Save stores the snapshot for ttl
	Save(ctx context.Context, ownerID string, snapshot *models.SessionSnapshot, ttl time.Duration) error
}
