package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/scribe/internal/book"
)

const chapterColumns = `c.id, c.title, c.description, c.position, c.created_at,
	(SELECT count(*) FROM notes n WHERE n.chapter_id = c.id)`

const noteColumns = `id, chapter_id, position, text, original_text, comment, status,
	source_conversation_id, source_conversation_title, source_type, created_at, updated_at`

// ListChapters returns every chapter in book order with its note count.
func (s *Store) ListChapters(ctx context.Context) ([]book.Chapter, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+chapterColumns+` FROM chapters c ORDER BY c.position`)
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
	return getChapter(ctx, s.pool, id)
}

// CreateChapter appends a chapter to the end of the book.
func (s *Store) CreateChapter(ctx context.Context, nc book.NewChapter) (*book.Chapter, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c := book.Chapter{ID: book.NewID(), Title: nc.Title, Description: nc.Description, CreatedAt: time.Now().UTC()}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM chapters`).Scan(&c.Order); err != nil {
		return nil, fmt.Errorf("count chapters: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO chapters (id, position, title, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Order, c.Title, c.Description, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chapter: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &c, nil
}

func (s *Store) UpdateChapter(ctx context.Context, id string, u book.ChapterUpdate) (*book.Chapter, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := getChapter(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	updated := u.Apply(*c)
	_, err = tx.Exec(ctx, `UPDATE chapters SET title = $1, description = $2 WHERE id = $3`,
		updated.Title, updated.Description, id)
	if err != nil {
		return nil, fmt.Errorf("update chapter %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &updated, nil
}

// DeleteChapter removes a chapter. Its notes move to the end of the
// unsorted pile and the remaining chapters are renumbered.
func (s *Store) DeleteChapter(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := getChapter(ctx, tx, id); err != nil {
		return err
	}
	next, err := nextNotePosition(ctx, tx, nil)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE notes SET chapter_id = NULL, position = position + $1 WHERE chapter_id = $2`, next, id)
	if err != nil {
		return fmt.Errorf("unsort notes of chapter %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chapters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete chapter %s: %w", id, err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE chapters c SET position = r.rn - 1
		FROM (SELECT id, row_number() OVER (ORDER BY position) AS rn FROM chapters) r
		WHERE c.id = r.id`)
	if err != nil {
		return fmt.Errorf("renumber chapters: %w", err)
	}
	return tx.Commit(ctx)
}

// ReorderChapters sets the book order. ids must list every chapter once.
func (s *Store) ReorderChapters(ctx context.Context, ids []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := queryIDs(ctx, tx, `SELECT id FROM chapters ORDER BY position`)
	if err != nil {
		return err
	}
	if err := book.CheckOrder(current, ids); err != nil {
		return err
	}
	if err := setPositions(ctx, tx, "chapters", ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListNotes returns the notes the filter selects. A single chapter or the
// unsorted pile comes back in note order; every note comes back oldest first.
func (s *Store) ListNotes(ctx context.Context, filter book.ChapterFilter) ([]book.Note, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.All() {
		rows, err = s.pool.Query(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at, id`)
	} else {
		chapterID := filter.ChapterID()
		if chapterID != nil {
			if _, err := getChapter(ctx, s.pool, *chapterID); err != nil {
				return nil, err
			}
		}
		rows, err = s.pool.Query(ctx,
			`SELECT `+noteColumns+` FROM notes WHERE chapter_id IS NOT DISTINCT FROM $1 ORDER BY position`, chapterID)
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
	return getNote(ctx, s.pool, id)
}

// CreateNote appends a note to its chapter.
func (s *Store) CreateNote(ctx context.Context, nn book.NewNote) (*book.Note, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

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

	_, err = tx.Exec(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.ChapterID, n.Order, n.Text, n.OriginalText, n.Comment, string(n.Status),
		n.SourceConversationID, n.SourceConversationTitle, string(n.SourceType), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &n, nil
}

func (s *Store) UpdateNote(ctx context.Context, id string, u book.NoteUpdate) (*book.Note, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := getNote(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	updated := u.Apply(*n, time.Now().UTC())
	_, err = tx.Exec(ctx, `UPDATE notes SET text = $1, comment = $2, status = $3, updated_at = $4 WHERE id = $5`,
		updated.Text, updated.Comment, string(updated.Status), updated.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update note %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &updated, nil
}

// DeleteNote removes a note and closes the gap it leaves in its chapter.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := getNote(ctx, tx, id)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE notes SET position = position - 1 WHERE chapter_id IS NOT DISTINCT FROM $1 AND position > $2`,
		n.ChapterID, n.Order)
	if err != nil {
		return fmt.Errorf("renumber notes: %w", err)
	}
	return tx.Commit(ctx)
}

// MoveNotes appends the notes, in the order given, to the end of chapterID.
// A nil chapterID moves them to the unsorted pile.
func (s *Store) MoveNotes(ctx context.Context, ids []string, chapterID *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if chapterID != nil {
		if _, err := getChapter(ctx, tx, *chapterID); err != nil {
			return err
		}
	}
	next, err := nextNotePosition(ctx, tx, chapterID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, id := range ids {
		tag, err := tx.Exec(ctx,
			`UPDATE notes SET chapter_id = $1, position = $2, updated_at = $3 WHERE id = $4`,
			chapterID, next, now, id)
		if err != nil {
			return fmt.Errorf("move note %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", book.ErrNoteNotFound, id)
		}
		next++
	}
	return tx.Commit(ctx)
}

// ReorderNotes sets the note order inside one chapter or the unsorted pile.
func (s *Store) ReorderNotes(ctx context.Context, filter book.ChapterFilter, ids []string) error {
	if filter.All() {
		return fmt.Errorf("%w: reorder needs a chapter", book.ErrInvalid)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	chapterID := filter.ChapterID()
	if chapterID != nil {
		if _, err := getChapter(ctx, tx, *chapterID); err != nil {
			return err
		}
	}
	current, err := queryIDs(ctx, tx,
		`SELECT id FROM notes WHERE chapter_id IS NOT DISTINCT FROM $1 ORDER BY position`, chapterID)
	if err != nil {
		return err
	}
	if err := book.CheckOrder(current, ids); err != nil {
		return err
	}
	if err := setPositions(ctx, tx, "notes", ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getChapter(ctx context.Context, q querier, id string) (*book.Chapter, error) {
	row := q.QueryRow(ctx, `SELECT `+chapterColumns+` FROM chapters c WHERE c.id = $1`, id)
	c, err := scanChapter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, book.ErrChapterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter %s: %w", id, err)
	}
	return &c, nil
}

func getNote(ctx context.Context, q querier, id string) (*book.Note, error) {
	row := q.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	n, err := scanNote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, book.ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}
	return &n, nil
}

func nextNotePosition(ctx context.Context, tx pgx.Tx, chapterID *string) (int, error) {
	var next int
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM notes WHERE chapter_id IS NOT DISTINCT FROM $1`, chapterID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next note position: %w", err)
	}
	return next, nil
}

func queryIDs(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan ids: %w", err)
	}
	return ids, nil
}

// setPositions numbers the rows of table in the order of ids with a single
// batch round trip.
func setPositions(ctx context.Context, tx pgx.Tx, table string, ids []string) error {
	batch := &pgx.Batch{}
	update := `UPDATE ` + pgx.Identifier{table}.Sanitize() + ` SET position = $1 WHERE id = $2`
	for i, id := range ids {
		batch.Queue(update, i, id)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("set %s positions: %w", table, err)
	}
	return nil
}

func scanChapter(row pgx.Row) (book.Chapter, error) {
	var c book.Chapter
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Order, &c.CreatedAt, &c.NoteCount)
	return c, err
}

func scanNote(row pgx.Row) (book.Note, error) {
	var (
		n              book.Note
		status, source string
	)
	err := row.Scan(&n.ID, &n.ChapterID, &n.Order, &n.Text, &n.OriginalText, &n.Comment, &status,
		&n.SourceConversationID, &n.SourceConversationTitle, &source, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return book.Note{}, err
	}
	n.Status = book.NoteStatus(status)
	n.SourceType = book.SourceType(source)
	return n, nil
}
