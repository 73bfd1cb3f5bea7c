package memory

import (
	"context"
	"sync"
	"time"

	clone "github.com/huandu/go-clone"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
)

// Storage keeps one owner's conversations and folders in memory.
// Values are deep-copied in both directions so callers never share state with it.
type Storage struct {
	mu            sync.RWMutex
	conversations []*models.Conversation
	folders       []*models.Folder
	now           func() time.Time
}

// NewStorage creates an empty store
func NewStorage() *Storage {
	return &Storage{now: func() time.Time { return time.Now().UTC() }}
}

var _ repositories.Storage = (*Storage)(nil)

func (s *Storage) GetConversations(ctx context.Context) ([]*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = copyConversation(c)
	}
	return out, nil
}

func (s *Storage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.findConversation(id)
	if c == nil {
		return nil, domain.NewNotFound("conversation", id)
	}
	return copyConversation(c), nil
}

func (s *Storage) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := models.NewConversation(title, s.now())
	s.conversations = append(s.conversations, conv)
	return copyConversation(conv), nil
}

func (s *Storage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyConversation(conv)
	for i, c := range s.conversations {
		if c.ID == conv.ID {
			s.conversations[i] = stored
			return nil
		}
	}
	s.conversations = append(s.conversations, stored)
	return nil
}

func (s *Storage) DeleteConversation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.conversations {
		if c.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFound("conversation", id)
}

func (s *Storage) AddMessage(ctx context.Context, conversationID string, msg models.Message) error {
	return s.updateConversation(ctx, conversationID, func(c *models.Conversation) {
		c.Messages = append(c.Messages, clone.Clone(msg).(models.Message))
		c.Touch(msg.Timestamp)
	})
}

func (s *Storage) RenameConversation(ctx context.Context, id, title string, modifiedAt time.Time) error {
	return s.updateConversation(ctx, id, func(c *models.Conversation) {
		c.Title = title
		c.Touch(modifiedAt)
	})
}

func (s *Storage) ToggleConversationStar(ctx context.Context, id string) (bool, error) {
	var starred bool
	err := s.updateConversation(ctx, id, func(c *models.Conversation) {
		c.IsStarred = !c.IsStarred
		starred = c.IsStarred
	})
	return starred, err
}

func (s *Storage) UpdateConversationTags(ctx context.Context, id string, tags []string, modifiedAt time.Time) error {
	return s.updateConversation(ctx, id, func(c *models.Conversation) {
		c.Tags = append([]string(nil), tags...)
		c.Touch(modifiedAt)
	})
}

func (s *Storage) MoveConversationToFolder(ctx context.Context, conversationID string, folderID *string) error {
	return s.updateConversation(ctx, conversationID, func(c *models.Conversation) {
		c.FolderID = copyString(models.NormalizeParentID(folderID))
	})
}

func (s *Storage) GetFolders(ctx context.Context) ([]*models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Folder, len(s.folders))
	for i, f := range s.folders {
		out[i] = copyFolder(f)
	}
	return out, nil
}

func (s *Storage) CreateFolder(ctx context.Context, params models.CreateFolderParams) (*models.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	folder := models.NewFolder(params.Name, copyString(models.NormalizeParentID(params.ParentID)), s.now())
	s.folders = append(s.folders, folder)
	return copyFolder(folder), nil
}

func (s *Storage) SaveFolder(ctx context.Context, folder *models.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyFolder(folder)
	for i, f := range s.folders {
		if f.ID == folder.ID {
			s.folders[i] = stored
			return nil
		}
	}
	s.folders = append(s.folders, stored)
	return nil
}

func (s *Storage) DeleteFolder(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.folders {
		if f.ID == id {
			s.folders = append(s.folders[:i], s.folders[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFound("folder", id)
}

func (s *Storage) updateConversation(ctx context.Context, id string, fn func(c *models.Conversation)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findConversation(id)
	if c == nil {
		return domain.NewNotFound("conversation", id)
	}
	fn(c)
	return nil
}

func (s *Storage) findConversation(id string) *models.Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func copyConversation(c *models.Conversation) *models.Conversation {
	return clone.Clone(c).(*models.Conversation)
}

func copyFolder(f *models.Folder) *models.Folder {
	return clone.Clone(f).(*models.Folder)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Provider hands out one in-memory Storage per owner
type Provider struct {
	mu     sync.Mutex
	owners map[string]*Storage
}

// NewProvider creates an empty provider
func NewProvider() *Provider {
	return &Provider{owners: make(map[string]*Storage)}
}

// ForOwner returns the owner's storage, creating it on first use
func (p *Provider) ForOwner(ownerID string) repositories.Storage {
	return p.Owner(ownerID)
}

// Owner is ForOwner with the concrete type
func (p *Provider) Owner(ownerID string) *Storage {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.owners[ownerID]
	if !ok {
		s = NewStorage()
		p.owners[ownerID] = s
	}
	return s
}
