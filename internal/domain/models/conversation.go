package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a titled, timestamped sequence of messages, optionally tagged and foldered
type Conversation struct {
	ID         string    `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
	Messages   []Message `json:"messages"`
	FolderID   *string   `json:"folder_id,omitempty" db:"folder_id"` // NULL = root level
	Tags       []string  `json:"tags,omitempty" db:"tags"`
	IsStarred  bool      `json:"is_starred" db:"is_starred"`
}

// NewConversation creates a conversation with a fresh id, equal timestamps and no messages
func NewConversation(title string, now time.Time) *Conversation {
	return &Conversation{
		ID:         uuid.NewString(),
		Title:      title,
		CreatedAt:  now,
		ModifiedAt: now,
		Messages:   []Message{},
	}
}

// Touch advances ModifiedAt, never moving it backwards or before CreatedAt
func (c *Conversation) Touch(now time.Time) {
	if now.After(c.ModifiedAt) {
		c.ModifiedAt = now
	}
	if c.ModifiedAt.Before(c.CreatedAt) {
		c.ModifiedAt = c.CreatedAt
	}
}

// HasTag reports whether the conversation carries tag exactly
func (c *Conversation) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsUnfiled reports whether the conversation sits at the root level
func (c *Conversation) IsUnfiled() bool {
	return NormalizeParentID(c.FolderID) == nil
}

// InFolder reports whether the conversation is directly contained in folderID
func (c *Conversation) InFolder(folderID string) bool {
	id := NormalizeParentID(c.FolderID)
	return id != nil && *id == folderID
}

// ConversationSummary is the list-view projection of a conversation (no message bodies)
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	FolderID     *string   `json:"folder_id"`
	Tags         []string  `json:"tags"`
	IsStarred    bool      `json:"is_starred"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// Summary projects the conversation for listings
func (c *Conversation) Summary() ConversationSummary {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		FolderID:     NormalizeParentID(c.FolderID),
		Tags:         tags,
		IsStarred:    c.IsStarred,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		ModifiedAt:   c.ModifiedAt,
	}
}
