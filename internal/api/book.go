package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/scribe/internal/book"
	"github.com/MikeSquared-Agency/scribe/internal/export"
)

// BookStore persists chapters and notes.
type BookStore interface {
	ListChapters(ctx context.Context) ([]book.Chapter, error)
	GetChapter(ctx context.Context, id string) (*book.Chapter, error)
	CreateChapter(ctx context.Context, nc book.NewChapter) (*book.Chapter, error)
	UpdateChapter(ctx context.Context, id string, u book.ChapterUpdate) (*book.Chapter, error)
	DeleteChapter(ctx context.Context, id string) error
	ReorderChapters(ctx context.Context, ids []string) error

	ListNotes(ctx context.Context, filter book.ChapterFilter) ([]book.Note, error)
	GetNote(ctx context.Context, id string) (*book.Note, error)
	CreateNote(ctx context.Context, nn book.NewNote) (*book.Note, error)
	UpdateNote(ctx context.Context, id string, u book.NoteUpdate) (*book.Note, error)
	DeleteNote(ctx context.Context, id string) error
	MoveNotes(ctx context.Context, ids []string, chapterID *string) error
	ReorderNotes(ctx context.Context, filter book.ChapterFilter, ids []string) error
}

type OrderRequest struct {
	Chapter string   `json:"chapter,omitempty"`
	IDs     []string `json:"ids"`
}

type MoveRequest struct {
	IDs       []string `json:"ids,omitempty"`
	ChapterID *string  `json:"chapter_id"`
}

func (s *Server) requireBook(w http.ResponseWriter) bool {
	if s.book == nil {
		writeError(w, http.StatusServiceUnavailable, "book storage not configured")
		return false
	}
	return true
}

// bookError maps store errors onto responses.
func (s *Server) bookError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, book.ErrChapterNotFound):
		writeError(w, http.StatusNotFound, "chapter not found")
	case errors.Is(err, book.ErrNoteNotFound):
		writeError(w, http.StatusNotFound, "note not found")
	case errors.Is(err, book.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func (s *Server) listChapters(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	chapters, err := s.book.ListChapters(r.Context())
	if err != nil {
		s.bookError(w, "list chapters", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func (s *Server) getChapter(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	c, err := s.book.GetChapter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.bookError(w, "get chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) createChapter(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	var req book.NewChapter
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.bookError(w, "create chapter", err)
		return
	}
	c, err := s.book.CreateChapter(r.Context(), req)
	if err != nil {
		s.bookError(w, "create chapter", err)
		return
	}
	s.logger.Info("chapter created", "id", c.ID, "title", c.Title)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateChapter(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	var req book.ChapterUpdate
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.bookError(w, "update chapter", err)
		return
	}
	c, err := s.book.UpdateChapter(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.bookError(w, "update chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteChapter(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.book.DeleteChapter(r.Context(), id); err != nil {
		s.bookError(w, "delete chapter", err)
		return
	}
	s.logger.Info("chapter deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderChapters(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	var req OrderRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.book.ReorderChapters(r.Context(), req.IDs); err != nil {
		s.bookError(w, "reorder chapters", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exportChapter serves a chapter, or the unsorted pile under the id
// "unsorted", as Markdown.
func (s *Server) exportChapter(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	id := chi.URLParam(r, "id")
	title := book.UnsortedTitle
	if id != book.Unsorted {
		c, err := s.book.GetChapter(r.Context(), id)
		if err != nil {
			s.bookError(w, "get chapter", err)
			return
		}
		title = c.Title
	}
	notes, err := s.book.ListNotes(r.Context(), book.ChapterFilter(id))
	if err != nil {
		s.bookError(w, "list notes", err)
		return
	}
	writeMarkdown(w, export.ChapterFilename(title), export.ChapterMarkdown(title, notes))
}

// listNotes handles GET /notes?chapter=<id|unsorted>. Without a chapter
// every note is returned.
func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	notes, err := s.book.ListNotes(r.Context(), book.ChapterFilter(r.URL.Query().Get("chapter")))
	if err != nil {
		s.bookError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	n, err := s.book.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.bookError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	var req book.NewNote
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.bookError(w, "create note", err)
		return
	}
	n, err := s.book.CreateNote(r.Context(), req)
	if err != nil {
		s.bookError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	var req book.NoteUpdate
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.bookError(w, "update note", err)
		return
	}
	n, err := s.book.UpdateNote(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.bookError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	if err := s.book.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.bookError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// moveNotes handles both POST /notes/move with a list of ids and
// POST /notes/{id}/move for a single note. A null chapter_id unsorts.
func (s *Server) moveNotes(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.IDs = []string{id}
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}
	if err := s.book.MoveNotes(r.Context(), req.IDs, req.ChapterID); err != nil {
		s.bookError(w, "move notes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderNotes(w http.ResponseWriter, r *http.Request) {
	if !s.requireBook(w) {
		return
	}
	var req OrderRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Chapter == "" {
		writeError(w, http.StatusBadRequest, "chapter is required")
		return
	}
	if err := s.book.ReorderNotes(r.Context(), book.ChapterFilter(req.Chapter), req.IDs); err != nil {
		s.bookError(w, "reorder notes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
