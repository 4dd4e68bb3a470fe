package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/book"
)

const chapterColumns = `c.id, c.title, c.description, c.position, c.created_at,
	(SELECT count(*) FROM notes n WHERE n.chapter_id = c.id)`

const noteColumns = `id, chapter_id, position, text, original_text, comment, status,
	source_conversation_id, source_conversation_title, source_type, created_at, updated_at`

// ListChapters returns every chapter in book order with its note count.
func (s *Store) ListChapters(ctx context.Context) ([]book.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chapterColumns+` FROM chapters c ORDER BY c.position`)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	out := []book.Chapter{}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetChapter(ctx context.Context, id string) (*book.Chapter, error) {
	return getChapter(ctx, s.db, id)
}

// CreateChapter appends a chapter to the end of the book.
func (s *Store) CreateChapter(ctx context.Context, nc book.NewChapter) (*book.Chapter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c := book.Chapter{ID: book.NewID(), Title: nc.Title, Description: nc.Description, CreatedAt: time.Now().UTC()}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM chapters`).Scan(&c.Order); err != nil {
		return nil, fmt.Errorf("count chapters: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO chapters (id, position, title, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Order, c.Title, c.Description, formatTime(c.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert chapter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &c, nil
}

func (s *Store) UpdateChapter(ctx context.Context, id string, u book.ChapterUpdate) (*book.Chapter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c, err := getChapter(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	updated := u.Apply(*c)
	_, err = tx.ExecContext(ctx, `UPDATE chapters SET title = ?, description = ? WHERE id = ?`,
		updated.Title, updated.Description, id)
	if err != nil {
		return nil, fmt.Errorf("update chapter %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &updated, nil
}

// DeleteChapter removes a chapter. Its notes move to the end of the
// unsorted pile and the remaining chapters are renumbered.
func (s *Store) DeleteChapter(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := getChapter(ctx, tx, id); err != nil {
		return err
	}
	next, err := nextNotePosition(ctx, tx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE notes SET chapter_id = NULL, position = position + ? WHERE chapter_id = ?`, next, id)
	if err != nil {
		return fmt.Errorf("unsort notes of chapter %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chapter %s: %w", id, err)
	}

	ids, err := queryIDs(ctx, tx, `SELECT id FROM chapters ORDER BY position`)
	if err != nil {
		return err
	}
	if err := setPositions(ctx, tx, `UPDATE chapters SET position = ? WHERE id = ?`, ids); err != nil {
		return err
	}
	return tx.Commit()
}

// ReorderChapters sets the book order. ids must list every chapter once.
func (s *Store) ReorderChapters(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := queryIDs(ctx, tx, `SELECT id FROM chapters ORDER BY position`)
	if err != nil {
		return err
	}
	if err := book.CheckOrder(current, ids); err != nil {
		return err
	}
	if err := setPositions(ctx, tx, `UPDATE chapters SET position = ? WHERE id = ?`, ids); err != nil {
		return err
	}
	return tx.Commit()
}

// ListNotes returns the notes the filter selects. A single chapter or the
// unsorted pile comes back in note order; every note comes back oldest first.
func (s *Store) ListNotes(ctx context.Context, filter book.ChapterFilter) ([]book.Note, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case filter.All():
		rows, err = s.db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY rowid`)
	default:
		chapterID := filter.ChapterID()
		if chapterID != nil {
			if _, err := getChapter(ctx, s.db, *chapterID); err != nil {
				return nil, err
			}
		}
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+noteColumns+` FROM notes WHERE chapter_id IS ? ORDER BY position`, nullString(chapterID))
	}
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	out := []book.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) GetNote(ctx context.Context, id string) (*book.Note, error) {
	return getNote(ctx, s.db, id)
}

// CreateNote appends a note to its chapter.
func (s *Store) CreateNote(ctx context.Context, nn book.NewNote) (*book.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if nn.ChapterID != nil {
		if _, err := getChapter(ctx, tx, *nn.ChapterID); err != nil {
			return nil, err
		}
	}
	pos, err := nextNotePosition(ctx, tx, nn.ChapterID)
	if err != nil {
		return nil, err
	}
	n := nn.Build(pos, time.Now().UTC())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, nullString(n.ChapterID), n.Order, n.Text, n.OriginalText, n.Comment, string(n.Status),
		nullString(n.SourceConversationID), nullString(n.SourceConversationTitle), string(n.SourceType),
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &n, nil
}

func (s *Store) UpdateNote(ctx context.Context, id string, u book.NoteUpdate) (*book.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	n, err := getNote(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	updated := u.Apply(*n, time.Now().UTC())
	_, err = tx.ExecContext(ctx, `UPDATE notes SET text = ?, comment = ?, status = ?, updated_at = ? WHERE id = ?`,
		updated.Text, updated.Comment, string(updated.Status), formatTime(updated.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update note %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &updated, nil
}

// DeleteNote removes a note and closes the gap it leaves in its chapter.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	n, err := getNote(ctx, tx, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE notes SET position = position - 1 WHERE chapter_id IS ? AND position > ?`,
		nullString(n.ChapterID), n.Order)
	if err != nil {
		return fmt.Errorf("renumber notes: %w", err)
	}
	return tx.Commit()
}

// MoveNotes appends the notes, in the order given, to the end of chapterID.
// A nil chapterID moves them to the unsorted pile.
func (s *Store) MoveNotes(ctx context.Context, ids []string, chapterID *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if chapterID != nil {
		if _, err := getChapter(ctx, tx, *chapterID); err != nil {
			return err
		}
	}
	next, err := nextNotePosition(ctx, tx, chapterID)
	if err != nil {
		return err
	}
	now := formatTime(time.Now().UTC())
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE notes SET chapter_id = ?, position = ?, updated_at = ? WHERE id = ?`,
			nullString(chapterID), next, now, id)
		if err != nil {
			return fmt.Errorf("move note %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", book.ErrNoteNotFound, id)
		}
		next++
	}
	return tx.Commit()
}

// ReorderNotes sets the note order inside one chapter or the unsorted pile.
func (s *Store) ReorderNotes(ctx context.Context, filter book.ChapterFilter, ids []string) error {
	if filter.All() {
		return fmt.Errorf("%w: reorder needs a chapter", book.ErrInvalid)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	chapterID := filter.ChapterID()
	if chapterID != nil {
		if _, err := getChapter(ctx, tx, *chapterID); err != nil {
			return err
		}
	}
	current, err := queryIDs(ctx, tx, `SELECT id FROM notes WHERE chapter_id IS ? ORDER BY position`, nullString(chapterID))
	if err != nil {
		return err
	}
	if err := book.CheckOrder(current, ids); err != nil {
		return err
	}
	if err := setPositions(ctx, tx, `UPDATE notes SET position = ? WHERE id = ?`, ids); err != nil {
		return err
	}
	return tx.Commit()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getChapter(ctx context.Context, q querier, id string) (*book.Chapter, error) {
	row := q.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters c WHERE c.id = ?`, id)
	c, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, book.ErrChapterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter %s: %w", id, err)
	}
	return &c, nil
}

func getNote(ctx context.Context, q querier, id string) (*book.Note, error) {
	row := q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, book.ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}
	return &n, nil
}

func nextNotePosition(ctx context.Context, tx *sql.Tx, chapterID *string) (int, error) {
	var next int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM notes WHERE chapter_id IS ?`, nullString(chapterID)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next note position: %w", err)
	}
	return next, nil
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func setPositions(ctx context.Context, tx *sql.Tx, update string, ids []string) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, update, i, id); err != nil {
			return fmt.Errorf("set position of %s: %w", id, err)
		}
	}
	return nil
}

func scanChapter(row scanner) (book.Chapter, error) {
	var (
		c       book.Chapter
		created string
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Order, &created, &c.NoteCount); err != nil {
		return book.Chapter{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return book.Chapter{}, fmt.Errorf("chapter %s: created at: %w", c.ID, err)
	}
	c.CreatedAt = ts
	return c, nil
}

func scanNote(row scanner) (book.Note, error) {
	var (
		n                        book.Note
		chapterID, srcID, srcTtl sql.NullString
		status, source           string
		created, updated         string
	)
	err := row.Scan(&n.ID, &chapterID, &n.Order, &n.Text, &n.OriginalText, &n.Comment, &status,
		&srcID, &srcTtl, &source, &created, &updated)
	if err != nil {
		return book.Note{}, err
	}
	if n.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return book.Note{}, fmt.Errorf("note %s: created at: %w", n.ID, err)
	}
	if n.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return book.Note{}, fmt.Errorf("note %s: updated at: %w", n.ID, err)
	}
	n.Status = book.NoteStatus(status)
	n.SourceType = book.SourceType(source)
	n.ChapterID = fromNull(chapterID)
	n.SourceConversationID = fromNull(srcID)
	n.SourceConversationTitle = fromNull(srcTtl)
	return n, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
