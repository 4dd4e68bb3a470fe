package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
	"github.com/MikeSquared-Agency/scribe/internal/export"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ConversationSummary is a listing row: a conversation without its body.
type ConversationSummary struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	CreateTime   time.Time       `json:"createTime"`
	GizmoID      *string         `json:"gizmoId"`
	IsLester     bool            `json:"isLester"`
	Teacher      archive.Teacher `json:"teacher"`
	MessageCount int             `json:"messageCount"`
	Kind         archive.Kind    `json:"kind"`
}

func summarize(c archive.Conversation) ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreateTime:   c.CreateTime,
		GizmoID:      c.GizmoID,
		IsLester:     c.IsLester,
		Teacher:      c.Teacher,
		MessageCount: c.MessageCount,
		Kind:         archive.KindOf(c),
	}
}

type ListResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// parseFilter reads q, teacher and type from the query string. teacher=none
// selects untagged conversations; type is a comma-separated list of kinds.
func parseFilter(r *http.Request) (archive.Filter, error) {
	q := r.URL.Query()
	f := archive.Filter{Query: q.Get("q")}

	if raw := q.Get("teacher"); raw != "" {
		t, err := archive.ParseTeacher(raw)
		if err != nil {
			return f, err
		}
		f.Teacher = &t
	}

	if raw := q.Get("type"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			switch kind := archive.Kind(strings.TrimSpace(k)); kind {
			case archive.KindLester, archive.KindCustom, archive.KindStandard:
				f.Kinds = append(f.Kinds, kind)
			default:
				return f, fmt.Errorf("unknown type %q", k)
			}
		}
	}
	return f, nil
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultListLimit, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		limit = min(limit, maxListLimit)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
	}
	return limit, offset, nil
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	all, err := s.store.LoadConversations(r.Context())
	if err != nil {
		s.logger.Error("load conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "load conversations failed")
		return
	}

	matched := filter.Apply(all)
	page := []ConversationSummary{}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		for _, c := range matched[offset:end] {
			page = append(page, summarize(c))
		}
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Conversations: page,
		Total:         len(matched),
		Limit:         limit,
		Offset:        offset,
	})
}

func (s *Server) conversationStats(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.LoadConversations(r.Context())
	if err != nil {
		s.logger.Error("load conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "load conversations failed")
		return
	}
	writeJSON(w, http.StatusOK, archive.Summarize(all))
}

func (s *Server) clearConversations(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearConversations(r.Context()); err != nil {
		s.logger.Error("clear conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "clear conversations failed")
		return
	}
	s.logger.Info("archive cleared")
	w.WriteHeader(http.StatusNoContent)
}

// lookup writes the error response itself and returns nil when the
// conversation cannot be served.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *archive.Conversation {
	id := chi.URLParam(r, "id")
	c, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil
	}
	if err != nil {
		s.logger.Error("get conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get conversation failed")
		return nil
	}
	return c
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	if c := s.lookup(w, r); c != nil {
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) exportConversation(w http.ResponseWriter, r *http.Request) {
	if c := s.lookup(w, r); c != nil {
		writeMarkdown(w, export.Filename(*c), export.ConversationMarkdown(*c))
	}
}

type ExportRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) exportConversations(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	all, err := s.store.LoadConversations(r.Context())
	if err != nil {
		s.logger.Error("load conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "load conversations failed")
		return
	}
	byID := make(map[string]archive.Conversation, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}

	var selected []archive.Conversation
	for _, id := range req.IDs {
		if c, ok := byID[id]; ok {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		writeError(w, http.StatusNotFound, "no matching conversations")
		return
	}

	filename := export.CombinedFilename(time.Now())
	if len(selected) == 1 {
		filename = export.Filename(selected[0])
	}
	writeMarkdown(w, filename, export.CombinedMarkdown(selected))
}

func writeMarkdown(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
