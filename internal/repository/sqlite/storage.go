package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"convtree/internal/domain"
	"convtree/internal/domain/models"
	"convtree/internal/domain/repositories"
)

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	parent_id   TEXT NULL,
	name        TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS folders_owner_idx ON folders (owner_id);

CREATE TABLE IF NOT EXISTS conversations (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	folder_id    TEXT NULL,
	title        TEXT NOT NULL,
	tags         TEXT NOT NULL DEFAULT '[]',
	is_starred   INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	modified_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_owner_idx ON conversations (owner_id);

CREATE TABLE IF NOT EXISTS messages (
	id               TEXT PRIMARY KEY,
	conversation_id  TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	data             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, position);
`

// Provider owns the sqlite database and hands out owner-scoped storage
type Provider struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating when needed) the database at path and initializes the schema.
// ":memory:" opens a private in-memory database.
func Open(path string, logger *slog.Logger) (*Provider, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" to a single database
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite storage ready", "path", path)
	return &Provider{db: db, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the database
func (p *Provider) Close() error {
	return p.db.Close()
}

// ForOwner implements repositories.StorageProvider
func (p *Provider) ForOwner(ownerID string) repositories.Storage {
	return &Storage{db: p.db, ownerID: ownerID, logger: p.logger}
}

// Storage is one owner's conversations and folders in sqlite
type Storage struct {
	db      *sql.DB
	ownerID string
	logger  *slog.Logger
}

var _ repositories.Storage = (*Storage)(nil)

func (s *Storage) GetConversations(ctx context.Context) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, folder_id, title, tags, is_starred, created_at, modified_at
		FROM conversations
		WHERE owner_id = ?
		ORDER BY created_at, id
	`, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	var convs []*models.Conversation
	byID := make(map[string]*models.Conversation)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		convs = append(convs, conv)
		byID[conv.ID] = conv
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	rows.Close()

	msgRows, err := s.db.QueryContext(ctx, `
		SELECT m.conversation_id, m.data
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.owner_id = ?
		ORDER BY m.conversation_id, m.position
	`, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var convID, data string
		if err := msgRows.Scan(&convID, &data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		conv, ok := byID[convID]
		if !ok {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return nil, fmt.Errorf("decode message in conversation %s: %w", convID, err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return convs, msgRows.Err()
}

func (s *Storage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, folder_id, title, tags, is_starred, created_at, modified_at
		FROM conversations
		WHERE id = ? AND owner_id = ?
	`, id, s.ownerID)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("conversation", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM messages WHERE conversation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

func (s *Storage) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	conv := models.NewConversation(title, time.Now().UTC())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner_id, folder_id, title, tags, is_starred, created_at, modified_at)
		VALUES (?, ?, NULL, ?, '[]', 0, ?, ?)
	`, conv.ID, s.ownerID, conv.Title, formatTime(conv.CreatedAt), formatTime(conv.ModifiedAt))
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *Storage) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	tags, err := encodeTags(conv.Tags)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT owner_id FROM conversations WHERE id = ?`, conv.ID).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
				INSERT INTO conversations (id, owner_id, folder_id, title, tags, is_starred, created_at, modified_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, conv.ID, s.ownerID, nullable(conv.FolderID), conv.Title, tags, conv.IsStarred,
				formatTime(conv.CreatedAt), formatTime(conv.ModifiedAt))
		case err != nil:
			return fmt.Errorf("lookup conversation: %w", err)
		case owner != s.ownerID:
			return &domain.ConflictError{Message: "conversation id in use", ResourceType: "conversation", ResourceID: conv.ID}
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE conversations
				SET folder_id = ?, title = ?, tags = ?, is_starred = ?, modified_at = ?
				WHERE id = ?
			`, nullable(conv.FolderID), conv.Title, tags, conv.IsStarred, formatTime(conv.ModifiedAt), conv.ID)
		}
		if err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		for i, msg := range conv.Messages {
			if err := insertMessage(ctx, tx, conv.ID, i, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) DeleteConversation(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE id = ? AND owner_id = ?)`, id, s.ownerID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND owner_id = ?`, id, s.ownerID)
		if err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return expectRow(res, "conversation", id)
	})
}

func (s *Storage) AddMessage(ctx context.Context, conversationID string, msg models.Message) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var modified string
		err := tx.QueryRowContext(ctx, `SELECT modified_at FROM conversations WHERE id = ? AND owner_id = ?`, conversationID, s.ownerID).Scan(&modified)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFound("conversation", conversationID)
		}
		if err != nil {
			return fmt.Errorf("lookup conversation: %w", err)
		}

		current, err := parseTime(modified)
		if err != nil {
			return err
		}
		if msg.Timestamp.After(current) {
			if _, err := tx.ExecContext(ctx, `UPDATE conversations SET modified_at = ? WHERE id = ?`, formatTime(msg.Timestamp), conversationID); err != nil {
				return fmt.Errorf("touch conversation: %w", err)
			}
		}

		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&next); err != nil {
			return fmt.Errorf("next message position: %w", err)
		}
		return insertMessage(ctx, tx, conversationID, next, msg)
	})
}

func (s *Storage) RenameConversation(ctx context.Context, id, title string, modifiedAt time.Time) error {
	return s.updateConversation(ctx, id, `UPDATE conversations SET title = ?, modified_at = MAX(modified_at, ?) WHERE id = ? AND owner_id = ?`,
		title, formatTime(modifiedAt), id, s.ownerID)
}

func (s *Storage) ToggleConversationStar(ctx context.Context, id string) (bool, error) {
	var starred bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET is_starred = 1 - is_starred WHERE id = ? AND owner_id = ?`, id, s.ownerID)
		if err != nil {
			return fmt.Errorf("toggle star: %w", err)
		}
		if err := expectRow(res, "conversation", id); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT is_starred FROM conversations WHERE id = ?`, id).Scan(&starred)
	})
	return starred, err
}

func (s *Storage) UpdateConversationTags(ctx context.Context, id string, tags []string, modifiedAt time.Time) error {
	encoded, err := encodeTags(tags)
	if err != nil {
		return err
	}
	return s.updateConversation(ctx, id, `UPDATE conversations SET tags = ?, modified_at = MAX(modified_at, ?) WHERE id = ? AND owner_id = ?`,
		encoded, formatTime(modifiedAt), id, s.ownerID)
}

func (s *Storage) MoveConversationToFolder(ctx context.Context, conversationID string, folderID *string) error {
	return s.updateConversation(ctx, conversationID, `UPDATE conversations SET folder_id = ? WHERE id = ? AND owner_id = ?`,
		nullable(folderID), conversationID, s.ownerID)
}

func (s *Storage) GetFolders(ctx context.Context) ([]*models.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, name, created_at, updated_at
		FROM folders
		WHERE owner_id = ?
		ORDER BY created_at, id
	`, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		var (
			f                models.Folder
			parent           sql.NullString
			created, updated string
		)
		if err := rows.Scan(&f.ID, &parent, &f.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		if parent.Valid {
			f.ParentID = &parent.String
		}
		if f.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if f.ModifiedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

func (s *Storage) CreateFolder(ctx context.Context, params models.CreateFolderParams) (*models.Folder, error) {
	folder := models.NewFolder(params.Name, models.NormalizeParentID(params.ParentID), time.Now().UTC())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folders (id, owner_id, parent_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, folder.ID, s.ownerID, nullable(folder.ParentID), folder.Name, formatTime(folder.CreatedAt), formatTime(folder.ModifiedAt))
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return folder, nil
}

func (s *Storage) SaveFolder(ctx context.Context, folder *models.Folder) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE folders SET parent_id = ?, name = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, nullable(folder.ParentID), folder.Name, formatTime(folder.ModifiedAt), folder.ID, s.ownerID)
	if err != nil {
		return fmt.Errorf("save folder: %w", err)
	}
	return expectRow(res, "folder", folder.ID)
}

func (s *Storage) DeleteFolder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ? AND owner_id = ?`, id, s.ownerID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return expectRow(res, "folder", id)
}

func (s *Storage) updateConversation(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return expectRow(res, "conversation", id)
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, conversationID string, position int, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, position, data) VALUES (?, ?, ?, ?)
	`, msg.ID, conversationID, position, string(data))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		c                 models.Conversation
		folder            sql.NullString
		tags              string
		created, modified string
	)
	if err := row.Scan(&c.ID, &folder, &c.Title, &tags, &c.IsStarred, &created, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if folder.Valid {
		c.FolderID = &folder.String
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of conversation %s: %w", c.ID, err)
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if c.ModifiedAt, err = parseTime(modified); err != nil {
		return nil, err
	}
	c.Messages = []models.Message{}
	return &c, nil
}

func expectRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.NewNotFound(resource, id)
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func nullable(s *string) any {
	if s = models.NormalizeParentID(s); s == nil {
		return nil
	}
	return *s
}

// Timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}
