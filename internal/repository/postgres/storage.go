package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
)

// Provider hands out owner-scoped postgres storage over one pool
type Provider struct {
	pool   *pgxpool.Pool
	tables *TableNames
	tx     repositories.TransactionManager
	logger *slog.Logger
}

// NewProvider creates a provider from the repository config
func NewProvider(config *RepositoryConfig) *Provider {
	return &Provider{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     NewTransactionManager(config.Pool, config.Logger),
		logger: config.Logger,
	}
}

// ForOwner implements repositories.StorageProvider
func (p *Provider) ForOwner(ownerID string) repositories.Storage {
	return &Storage{
		pool:    p.pool,
		tables:  p.tables,
		tx:      p.tx,
		ownerID: ownerID,
		logger:  p.logger,
	}
}

// Storage is one owner's conversations and folders in postgres
type Storage struct {
	pool    *pgxpool.Pool
	tables  *TableNames
	tx      repositories.TransactionManager
	ownerID string
	logger  *slog.Logger
}

var _ repositories.Storage = (*Storage)(nil)

// GetConversations returns every conversation with its messages, oldest first
func (s *Storage) GetConversations(ctx context.Context) ([]*models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, folder_id, title, tags, is_starred, created_at, modified_at
		FROM %s
		WHERE owner_id = $1
		ORDER BY created_at, id
	`, s.tables.Conversations)

	rows, err := GetExecutor(ctx, s.pool).Query(ctx, query, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	byID := make(map[string]*models.Conversation)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
		byID[conv.ID] = conv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	msgQuery := fmt.Sprintf(`
		SELECT m.conversation_id, m.data
		FROM %s m
		JOIN %s c ON c.id = m.conversation_id
		WHERE c.owner_id = $1
		ORDER BY m.conversation_id, m.position
	`, s.tables.Messages, s.tables.Conversations)

	msgRows, err := GetExecutor(ctx, s.pool).Query(ctx, msgQuery, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var convID string
		var data []byte
		if err := msgRows.Scan(&convID, &data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		conv, ok := byID[convID]
		if !ok {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message in conversation %s: %w", convID, err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return convs, nil
}

// GetConversation returns one conversation with its messages
func (s *Storage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, folder_id, title, tags, is_starred, created_at, modified_at
		FROM %s
		WHERE id = $1 AND owner_id = $2
	`, s.tables.Conversations)

	conv, err := scanConversation(GetExecutor(ctx, s.pool).QueryRow(ctx, query, id, s.ownerID))
	if err != nil {
		return nil, classify("get conversation", "conversation", id, err)
	}

	msgQuery := fmt.Sprintf(`
		SELECT data FROM %s WHERE conversation_id = $1 ORDER BY position
	`, s.tables.Messages)

	rows, err := GetExecutor(ctx, s.pool).Query(ctx, msgQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

// CreateConversation inserts an empty conversation
func (s *Storage) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	conv := models.NewConversation(title, time.Now().UTC())

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, folder_id, title, tags, is_starred, created_at, modified_at)
		VALUES ($1, $2, NULL, $3, '{}', FALSE, $4, $5)
	`, s.tables.Conversations)

	_, err := GetExecutor(ctx, s.pool).Exec(ctx, query, conv.ID, s.ownerID, conv.Title, conv.CreatedAt, conv.ModifiedAt)
	if err != nil {
		return nil, classify("create conversation", "conversation", conv.ID, err)
	}

	s.logger.Debug("conversation inserted", "id", conv.ID, "owner_id", s.ownerID)
	return conv, nil
}

// SaveConversation upserts the conversation row and replaces its messages
func (s *Storage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	return s.tx.ExecTx(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.pool)

		query := fmt.Sprintf(`
			INSERT INTO %s (id, owner_id, folder_id, title, tags, is_starred, created_at, modified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				folder_id = EXCLUDED.folder_id,
				title = EXCLUDED.title,
				tags = EXCLUDED.tags,
				is_starred = EXCLUDED.is_starred,
				modified_at = EXCLUDED.modified_at
			WHERE %s.owner_id = EXCLUDED.owner_id
		`, s.tables.Conversations, s.tables.Conversations)

		tags := conv.Tags
		if tags == nil {
			tags = []string{}
		}
		result, err := exec.Exec(ctx, query,
			conv.ID,
			s.ownerID,
			models.NormalizeParentID(conv.FolderID),
			conv.Title,
			tags,
			conv.IsStarred,
			conv.CreatedAt,
			conv.ModifiedAt,
		)
		if err != nil {
			return classify("save conversation", "conversation", conv.ID, err)
		}
		if result.RowsAffected() == 0 {
			// The id belongs to another owner
			return &domain.ConflictError{Message: "conversation id in use", ResourceType: "conversation", ResourceID: conv.ID}
		}

		del := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1`, s.tables.Messages)
		if _, err := exec.Exec(ctx, del, conv.ID); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}

		for i, msg := range conv.Messages {
			if err := s.insertMessage(ctx, conv.ID, i, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteConversation deletes the conversation; messages cascade
func (s *Storage) DeleteConversation(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, s.tables.Conversations)

	result, err := GetExecutor(ctx, s.pool).Exec(ctx, query, id, s.ownerID)
	if err != nil {
		return classify("delete conversation", "conversation", id, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("conversation", id)
	}
	return nil
}

// AddMessage appends msg and bumps modified_at in one transaction
func (s *Storage) AddMessage(ctx context.Context, conversationID string, msg models.Message) error {
	return s.tx.ExecTx(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.pool)

		touch := fmt.Sprintf(`
			UPDATE %s SET modified_at = GREATEST(modified_at, $1)
			WHERE id = $2 AND owner_id = $3
		`, s.tables.Conversations)

		result, err := exec.Exec(ctx, touch, msg.Timestamp, conversationID, s.ownerID)
		if err != nil {
			return classify("add message", "conversation", conversationID, err)
		}
		if result.RowsAffected() == 0 {
			return domain.NewNotFound("conversation", conversationID)
		}

		var next int
		pos := fmt.Sprintf(`SELECT COALESCE(MAX(position) + 1, 0) FROM %s WHERE conversation_id = $1`, s.tables.Messages)
		if err := exec.QueryRow(ctx, pos, conversationID).Scan(&next); err != nil {
			return fmt.Errorf("next message position: %w", err)
		}

		return s.insertMessage(ctx, conversationID, next, msg)
	})
}

func (s *Storage) insertMessage(ctx context.Context, conversationID string, position int, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, position, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.tables.Messages)

	_, err = GetExecutor(ctx, s.pool).Exec(ctx, query, msg.ID, conversationID, position, data, msg.Timestamp)
	if err != nil {
		return classify("insert message", "message", msg.ID, err)
	}
	return nil
}

// RenameConversation updates the title
func (s *Storage) RenameConversation(ctx context.Context, id, title string, modifiedAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $1, modified_at = GREATEST(modified_at, $2)
		WHERE id = $3 AND owner_id = $4
	`, s.tables.Conversations)
	return s.execConversation(ctx, "rename conversation", id, query, title, modifiedAt, id, s.ownerID)
}

// ToggleConversationStar flips is_starred and returns the new value
func (s *Storage) ToggleConversationStar(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET is_starred = NOT is_starred
		WHERE id = $1 AND owner_id = $2
		RETURNING is_starred
	`, s.tables.Conversations)

	var starred bool
	if err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, id, s.ownerID).Scan(&starred); err != nil {
		return false, classify("toggle star", "conversation", id, err)
	}
	return starred, nil
}

// UpdateConversationTags replaces the tag array
func (s *Storage) UpdateConversationTags(ctx context.Context, id string, tags []string, modifiedAt time.Time) error {
	if tags == nil {
		tags = []string{}
	}
	query := fmt.Sprintf(`
		UPDATE %s SET tags = $1, modified_at = GREATEST(modified_at, $2)
		WHERE id = $3 AND owner_id = $4
	`, s.tables.Conversations)
	return s.execConversation(ctx, "update tags", id, query, tags, modifiedAt, id, s.ownerID)
}

// MoveConversationToFolder sets folder_id (NULL = root)
func (s *Storage) MoveConversationToFolder(ctx context.Context, conversationID string, folderID *string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET folder_id = $1
		WHERE id = $2 AND owner_id = $3
	`, s.tables.Conversations)
	return s.execConversation(ctx, "move conversation", conversationID, query, models.NormalizeParentID(folderID), conversationID, s.ownerID)
}

func (s *Storage) execConversation(ctx context.Context, op, id, query string, args ...any) error {
	result, err := GetExecutor(ctx, s.pool).Exec(ctx, query, args...)
	if err != nil {
		return classify(op, "conversation", id, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("conversation", id)
	}
	return nil
}

// GetFolders returns the owner's folders in creation order
func (s *Storage) GetFolders(ctx context.Context) ([]*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT id, parent_id, name, created_at, updated_at
		FROM %s
		WHERE owner_id = $1
		ORDER BY created_at, id
	`, s.tables.Folders)

	rows, err := GetExecutor(ctx, s.pool).Query(ctx, query, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.ParentID, &f.Name, &f.CreatedAt, &f.ModifiedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

// CreateFolder inserts a folder
func (s *Storage) CreateFolder(ctx context.Context, params models.CreateFolderParams) (*models.Folder, error) {
	folder := models.NewFolder(params.Name, models.NormalizeParentID(params.ParentID), time.Now().UTC())

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, parent_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.tables.Folders)

	_, err := GetExecutor(ctx, s.pool).Exec(ctx, query,
		folder.ID,
		s.ownerID,
		folder.ParentID,
		folder.Name,
		folder.CreatedAt,
		folder.ModifiedAt,
	)
	if err != nil {
		return nil, classify("create folder", "folder", folder.ID, err)
	}
	return folder, nil
}

// SaveFolder updates name and parent
func (s *Storage) SaveFolder(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s SET parent_id = $1, name = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5
	`, s.tables.Folders)

	result, err := GetExecutor(ctx, s.pool).Exec(ctx, query,
		models.NormalizeParentID(folder.ParentID),
		folder.Name,
		folder.ModifiedAt,
		folder.ID,
		s.ownerID,
	)
	if err != nil {
		return classify("save folder", "folder", folder.ID, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("folder", folder.ID)
	}
	return nil
}

// DeleteFolder deletes the folder row only
func (s *Storage) DeleteFolder(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, s.tables.Folders)

	result, err := GetExecutor(ctx, s.pool).Exec(ctx, query, id, s.ownerID)
	if err != nil {
		return classify("delete folder", "folder", id, err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFound("folder", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.FolderID, &c.Title, &c.Tags, &c.IsStarred, &c.CreatedAt, &c.ModifiedAt); err != nil {
		return nil, err
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	c.Messages = []models.Message{}
	return &c, nil
}
