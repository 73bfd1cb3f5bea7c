package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaTemplate takes the folders, conversations and messages table names
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	parent_id   TEXT NULL,
	name        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_owner_idx ON %[1]s (owner_id);

CREATE TABLE IF NOT EXISTS %[2]s (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	folder_id    TEXT NULL,
	title        TEXT NOT NULL,
	tags         TEXT[] NOT NULL DEFAULT '{}',
	is_starred   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL,
	modified_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s_owner_idx ON %[2]s (owner_id);

CREATE TABLE IF NOT EXISTS %[3]s (
	id               TEXT PRIMARY KEY,
	conversation_id  TEXT NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	data             JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[3]s_conversation_idx ON %[3]s (conversation_id, position);
`

// EnsureSchema creates the tables for the configured prefix when missing
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	query := fmt.Sprintf(schemaTemplate, tables.Folders, tables.Conversations, tables.Messages)
	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
