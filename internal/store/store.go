package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	position      INTEGER NOT NULL,
	title         TEXT NOT NULL,
	create_time   TIMESTAMPTZ NOT NULL,
	gizmo_id      TEXT,
	is_lester     BOOLEAN NOT NULL DEFAULT false,
	teacher       TEXT,
	message_count INTEGER NOT NULL DEFAULT 0,
	markdown      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_position_idx ON conversations (position);

CREATE TABLE IF NOT EXISTS chapters (
	id          TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notes (
	id                        TEXT PRIMARY KEY,
	chapter_id                TEXT REFERENCES chapters (id),
	position                  INTEGER NOT NULL,
	text                      TEXT NOT NULL,
	original_text             TEXT NOT NULL,
	comment                   TEXT NOT NULL DEFAULT '',
	status                    TEXT NOT NULL,
	source_conversation_id    TEXT,
	source_conversation_title TEXT,
	source_type               TEXT NOT NULL,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS notes_chapter_idx ON notes (chapter_id, position);`

// EnsureSchema creates the archive and book tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
