// Package localstore keeps the conversation archive and the book chapters
// and notes in a SQLite file. It is used when no PostgreSQL database is
// configured.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	position      INTEGER NOT NULL,
	title         TEXT NOT NULL,
	create_time   TEXT NOT NULL,
	gizmo_id      TEXT,
	is_lester     INTEGER NOT NULL DEFAULT 0,
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
	created_at  TEXT NOT NULL
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
	created_at                TEXT NOT NULL,
	updated_at                TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS notes_chapter_idx ON notes (chapter_id, position);`

const conversationColumns = `id, title, create_time, gizmo_id, is_lester, teacher, message_count, markdown`

type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveConversations replaces the stored archive with conversations, keeping
// their order.
func (s *Store) SaveConversations(ctx context.Context, conversations []archive.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations (id, position, title, create_time, gizmo_id, is_lester, teacher, message_count, markdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range conversations {
		_, err := stmt.ExecContext(ctx,
			c.ID, i, c.Title, c.CreateTime.Format(time.RFC3339Nano), c.GizmoID, c.IsLester, nullTeacher(c.Teacher), c.MessageCount, c.Markdown,
		)
		if err != nil {
			return fmt.Errorf("insert conversation %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadConversations returns every stored conversation in import order.
func (s *Store) LoadConversations(ctx context.Context) ([]archive.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+conversationColumns+` FROM conversations ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []archive.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetConversation(ctx context.Context, id string) (*archive.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archive.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ClearConversations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations`)
	return err
}

func (s *Store) CountConversations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM conversations`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (archive.Conversation, error) {
	var (
		c       archive.Conversation
		created string
		gizmo   sql.NullString
		teacher sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Title, &created, &gizmo, &c.IsLester, &teacher, &c.MessageCount, &c.Markdown); err != nil {
		return archive.Conversation{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return archive.Conversation{}, fmt.Errorf("conversation %s: create time: %w", c.ID, err)
	}
	c.CreateTime = ts
	if gizmo.Valid {
		c.GizmoID = &gizmo.String
	}
	if teacher.Valid {
		c.Teacher = archive.Teacher(teacher.String)
	}
	return c, nil
}

func nullTeacher(t archive.Teacher) sql.NullString {
	return sql.NullString{String: string(t), Valid: t != archive.TeacherNone}
}
