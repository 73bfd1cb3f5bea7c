package sidebar

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	clone "github.com/huandu/go-clone"

	"convtree/internal/config"
	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
	"convtree/internal/domain/services"
)

// ConversationStore holds the ordered conversation list and the selected pointer.
// It is not safe for concurrent use; the owning Workspace serializes access.
type ConversationStore struct {
	storage       repositories.Storage
	conversations []*models.Conversation
	selectedID    *string
	timeout       time.Duration
	now           Clock
	logger        *slog.Logger
}

// NewConversationStore creates an empty conversation store backed by storage
func NewConversationStore(storage repositories.Storage, timeout time.Duration, logger *slog.Logger) *ConversationStore {
	return &ConversationStore{
		storage: storage,
		timeout: timeout,
		now:     systemClock,
		logger:  logger,
	}
}

// Load replaces the in-memory list with the stored conversations
func (s *ConversationStore) Load(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	convs, err := s.storage.GetConversations(ctx)
	if err != nil {
		return domain.WrapPersistence("load conversations", err)
	}

	s.conversations = make([]*models.Conversation, 0, len(convs))
	for _, c := range convs {
		if c == nil {
			continue
		}
		c.FolderID = models.NormalizeParentID(c.FolderID)
		s.conversations = append(s.conversations, c)
	}

	if s.selectedID != nil && s.find(*s.selectedID) == nil {
		s.selectedID = nil
	}

	s.logger.Debug("conversations loaded", "count", len(s.conversations))
	return nil
}

// List returns the live conversations. Callers must treat them as read-only.
func (s *ConversationStore) List() []*models.Conversation {
	out := make([]*models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Len returns the number of loaded conversations
func (s *ConversationStore) Len() int {
	return len(s.conversations)
}

// Get returns a copy of the conversation with id
func (s *ConversationStore) Get(id string) (*models.Conversation, error) {
	c := s.find(id)
	if c == nil {
		return nil, domain.NewNotFound("conversation", id)
	}
	return stageConversation(c), nil
}

// InFolder returns the conversations directly contained in folderID
func (s *ConversationStore) InFolder(folderID string) []*models.Conversation {
	var out []*models.Conversation
	for _, c := range s.conversations {
		if c.InFolder(folderID) {
			out = append(out, c)
		}
	}
	return out
}

// Selected returns the selected conversation id, or nil
func (s *ConversationStore) Selected() *string {
	if s.selectedID == nil {
		return nil
	}
	id := *s.selectedID
	return &id
}

// Select marks id as the current conversation
func (s *ConversationStore) Select(id string) (*models.Conversation, error) {
	c := s.find(id)
	if c == nil {
		return nil, domain.NewNotFound("conversation", id)
	}
	s.selectedID = &c.ID
	return stageConversation(c), nil
}

// ClearSelection drops the selected pointer
func (s *ConversationStore) ClearSelection() {
	s.selectedID = nil
}

// Create persists a new conversation and appends it. folderID, when set, is
// written with a follow-up move; the caller validates the folder exists.
// If the move fails the stored row is deleted again and nothing is appended.
func (s *ConversationStore) Create(ctx context.Context, title string, folderID *string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = config.DefaultConversationTitle
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	conv, err := s.storage.CreateConversation(ctx, title)
	if err != nil {
		return nil, domain.WrapPersistence("create conversation", err)
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}

	folderID = models.NormalizeParentID(folderID)
	if folderID != nil {
		staged := stageConversation(conv)
		staged.FolderID = folderID
		if err := s.storage.MoveConversationToFolder(ctx, staged.ID, folderID); err != nil {
			s.discard(ctx, conv.ID)
			return nil, domain.WrapPersistence("move conversation", err)
		}
		conv = staged
	}

	s.conversations = append(s.conversations, conv)

	s.logger.Info("conversation created",
		"id", conv.ID,
		"title", conv.Title,
		"folder_id", conv.FolderID,
	)

	return stageConversation(conv), nil
}

// Rename changes the title. An unchanged title is a no-op; an empty one is invalid.
func (s *ConversationStore) Rename(ctx context.Context, id, title string) (*models.Conversation, error) {
	current := s.find(id)
	if current == nil {
		return nil, domain.NewNotFound("conversation", id)
	}

	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if title == current.Title {
		return stageConversation(current), nil
	}

	staged := stageConversation(current)
	staged.Title = title
	staged.Touch(s.now())

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.storage.RenameConversation(ctx, id, title, staged.ModifiedAt); err != nil {
		return nil, domain.WrapPersistence("rename conversation", err)
	}
	s.commit(staged)

	s.logger.Info("conversation renamed", "id", id, "title", title)
	return stageConversation(staged), nil
}

// Delete removes the conversation from storage and memory, clearing the
// selection when it pointed at it
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	if s.find(id) == nil {
		return domain.NewNotFound("conversation", id)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.storage.DeleteConversation(ctx, id); err != nil {
		return domain.WrapPersistence("delete conversation", err)
	}

	for i, c := range s.conversations {
		if c.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			break
		}
	}
	if s.selectedID != nil && *s.selectedID == id {
		s.selectedID = nil
	}

	s.logger.Info("conversation deleted", "id", id)
	return nil
}

// ToggleStar flips the starred flag, committing the value storage reports
func (s *ConversationStore) ToggleStar(ctx context.Context, id string) (*models.Conversation, error) {
	current := s.find(id)
	if current == nil {
		return nil, domain.NewNotFound("conversation", id)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	starred, err := s.storage.ToggleConversationStar(ctx, id)
	if err != nil {
		return nil, domain.WrapPersistence("toggle star", err)
	}

	staged := stageConversation(current)
	staged.IsStarred = starred
	s.commit(staged)

	s.logger.Info("conversation star toggled", "id", id, "starred", starred)
	return stageConversation(staged), nil
}

// UpdateTags replaces the tag list with a normalized copy of tags
func (s *ConversationStore) UpdateTags(ctx context.Context, id string, tags []string) (*models.Conversation, error) {
	current := s.find(id)
	if current == nil {
		return nil, domain.NewNotFound("conversation", id)
	}

	tags = NormalizeTags(tags)
	if err := validateTags(tags); err != nil {
		return nil, err
	}

	staged := stageConversation(current)
	staged.Tags = tags
	staged.Touch(s.now())

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.storage.UpdateConversationTags(ctx, id, tags, staged.ModifiedAt); err != nil {
		return nil, domain.WrapPersistence("update tags", err)
	}
	s.commit(staged)

	s.logger.Info("conversation tags updated", "id", id, "tags", tags)
	return stageConversation(staged), nil
}

// AddMessage appends a message to the conversation
func (s *ConversationStore) AddMessage(ctx context.Context, id string, input services.MessageInput) (*models.Message, error) {
	current := s.find(id)
	if current == nil {
		return nil, domain.NewNotFound("conversation", id)
	}

	msg, err := s.buildMessage(input)
	if err != nil {
		return nil, err
	}

	staged := stageConversation(current)
	staged.Messages = append(staged.Messages, msg)
	staged.Touch(msg.Timestamp)

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.storage.AddMessage(ctx, id, msg); err != nil {
		return nil, domain.WrapPersistence("add message", err)
	}
	s.commit(staged)

	s.logger.Debug("message added", "conversation_id", id, "message_id", msg.ID, "role", msg.Role)
	out := clone.Clone(msg).(models.Message)
	return &out, nil
}

// SetFolder commits a folder move that the storage collaborator already accepted
func (s *ConversationStore) SetFolder(id string, folderID *string) (*models.Conversation, error) {
	current := s.find(id)
	if current == nil {
		return nil, domain.NewNotFound("conversation", id)
	}

	staged := stageConversation(current)
	staged.FolderID = models.NormalizeParentID(folderID)
	s.commit(staged)
	return stageConversation(staged), nil
}

func (s *ConversationStore) buildMessage(input services.MessageInput) (models.Message, error) {
	role, err := models.ParseRole(strings.ToLower(strings.TrimSpace(input.Role)))
	if err != nil {
		return models.Message{}, domain.NewValidation("invalid message", err)
	}

	err = validation.Validate(input.Content, validation.Length(0, config.MaxMessageContentLength))
	if err != nil {
		return models.Message{}, domain.NewValidation("invalid message content", err)
	}
	if strings.TrimSpace(input.Content) == "" && len(input.ToolCalls) == 0 && len(input.ToolResults) == 0 {
		return models.Message{}, domain.NewValidation("message requires content, tool calls or tool results", nil)
	}

	// The caller keeps its input; defaults are filled on a copy
	input = clone.Clone(input).(services.MessageInput)

	msg := models.NewMessage(role, input.Content, s.now())
	msg.ToolCalls = input.ToolCalls
	msg.ToolResults = input.ToolResults
	msg.Extensions = input.Extensions
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = models.NewMessageID(msg.Timestamp)
		}
		if msg.ToolCalls[i].Status == "" {
			msg.ToolCalls[i].Status = models.ToolCallPending
		}
	}
	if err := msg.Validate(); err != nil {
		return models.Message{}, domain.NewValidation("invalid message", err)
	}
	return msg, nil
}

// discard removes a just-created row after a failed follow-up write. It runs
// even when ctx already expired.
func (s *ConversationStore) discard(ctx context.Context, id string) {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.storage.DeleteConversation(ctx, id); err != nil {
		s.logger.Warn("failed to discard partially created conversation", "id", id, "error", err)
		return
	}
	s.logger.Debug("partially created conversation discarded", "id", id)
}

func (s *ConversationStore) find(id string) *models.Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *ConversationStore) commit(conv *models.Conversation) {
	for i, c := range s.conversations {
		if c.ID == conv.ID {
			s.conversations[i] = conv
			return
		}
	}
}

func validateTitle(title string) error {
	err := validation.Validate(title,
		validation.Required,
		validation.RuneLength(1, config.MaxConversationTitleLength),
	)
	if err != nil {
		return domain.NewValidation("invalid conversation title", err)
	}
	return nil
}
