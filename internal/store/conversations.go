package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
)

const conversationColumns = `id, title, create_time, gizmo_id, is_lester, teacher, message_count, markdown`

// SaveConversations replaces the stored archive with conversations, keeping
// their order.
func (s *Store) SaveConversations(ctx context.Context, conversations []archive.Conversation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	rows := make([][]any, len(conversations))
	for i, c := range conversations {
		rows[i] = []any{c.ID, i, c.Title, c.CreateTime, c.GizmoID, c.IsLester, nullTeacher(c.Teacher), c.MessageCount, c.Markdown}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"conversations"},
		[]string{"id", "position", "title", "create_time", "gizmo_id", "is_lester", "teacher", "message_count", "markdown"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert conversations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadConversations returns every stored conversation in import order.
func (s *Store) LoadConversations(ctx context.Context) ([]archive.Conversation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+conversationColumns+` FROM conversations ORDER BY position`)
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

// GetConversation fetches one conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*archive.Conversation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, archive.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

// ClearConversations deletes the stored archive.
func (s *Store) ClearConversations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM conversations`)
	return err
}

func (s *Store) CountConversations(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM conversations`).Scan(&n)
	return n, err
}

func scanConversation(row pgx.Row) (archive.Conversation, error) {
	var (
		c       archive.Conversation
		teacher *string
	)
	err := row.Scan(&c.ID, &c.Title, &c.CreateTime, &c.GizmoID, &c.IsLester, &teacher, &c.MessageCount, &c.Markdown)
	if err != nil {
		return archive.Conversation{}, err
	}
	if teacher != nil {
		c.Teacher = archive.Teacher(*teacher)
	}
	return c, nil
}

func nullTeacher(t archive.Teacher) *string {
	if t == archive.TeacherNone {
		return nil
	}
	s := string(t)
	return &s
}
