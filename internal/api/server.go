package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
	"github.com/MikeSquared-Agency/scribe/internal/assistant"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

// Store is the conversation archive behind the API.
type Store interface {
	SaveConversations(ctx context.Context, conversations []archive.Conversation) error
	LoadConversations(ctx context.Context) ([]archive.Conversation, error)
	GetConversation(ctx context.Context, id string) (*archive.Conversation, error)
	ClearConversations(ctx context.Context) error
	CountConversations(ctx context.Context) (int, error)
}

// Backend is a store that also keeps the book.
type Backend interface {
	Store
	BookStore
}

type Deps struct {
	Store     Store
	Book      BookStore // nil makes the chapter and note routes answer 503
	Importer  *ingest.Importer
	Assistant *assistant.Assistant // nil when no completion service is configured
	History   *ingest.History      // optional
	Logger    *slog.Logger

	MaxUploadBytes int64
}

type Server struct {
	router *chi.Mux
	port   int

	store     Store
	book      BookStore
	importer  *ingest.Importer
	assistant *assistant.Assistant
	history   *ingest.History
	logger    *slog.Logger
	maxUpload int64
}

func NewServer(port int, apiToken string, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		port:      port,
		store:     deps.Store,
		book:      deps.Book,
		importer:  deps.Importer,
		assistant: deps.Assistant,
		history:   deps.History,
		logger:    deps.Logger,
		maxUpload: deps.MaxUploadBytes,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 512 << 20
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/scribe/status", s.status)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(apiToken))

			r.Post("/imports", s.createImport)
			r.Get("/imports", s.listImports)

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", s.listConversations)
				r.Delete("/", s.clearConversations)
				r.Get("/stats", s.conversationStats)
				r.Post("/export", s.exportConversations)
				r.Get("/{id}", s.getConversation)
				r.Get("/{id}/export", s.exportConversation)
			})

			r.Route("/chapters", func(r chi.Router) {
				r.Get("/", s.listChapters)
				r.Post("/", s.createChapter)
				r.Put("/order", s.reorderChapters)
				r.Get("/{id}", s.getChapter)
				r.Patch("/{id}", s.updateChapter)
				r.Delete("/{id}", s.deleteChapter)
				r.Get("/{id}/export", s.exportChapter)
			})

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", s.listNotes)
				r.Post("/", s.createNote)
				r.Put("/order", s.reorderNotes)
				r.Post("/move", s.moveNotes)
				r.Get("/{id}", s.getNote)
				r.Patch("/{id}", s.updateNote)
				r.Delete("/{id}", s.deleteNote)
				r.Post("/{id}/move", s.moveNotes)
			})

			r.Post("/ask", s.ask)
			r.Post("/distill", s.distill)
		})
	})

	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.CountConversations(r.Context())
	if err != nil {
		s.logger.Error("count conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "count conversations failed")
		return
	}
	resp := map[string]any{
		"agent":         "scribe",
		"status":        "ok",
		"conversations": n,
		"assistant":     s.assistant != nil,
	}
	if s.history != nil {
		if last, ok := s.history.Last(); ok {
			resp["last_import"] = last
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
