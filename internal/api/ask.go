package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/assistant"
)

type AskRequest struct {
	Query        string `json:"query"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type DistillRequest struct {
	Texts []string `json:"texts"`
}

type deltaEvent struct {
	Content string `json:"content"`
}

// ask handles POST /api/v1/ask. Events: sources, delta..., then done or error.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant not configured: set DEEPSEEK_API_KEY")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	conversations, err := s.store.LoadConversations(r.Context())
	if err != nil {
		s.logger.Error("load conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "load conversations failed")
		return
	}

	es, ok := newEventStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err = s.assistant.Ask(r.Context(), req.Query, conversations, req.SystemPrompt,
		func(sources []assistant.Source) {
			if sources == nil {
				sources = []assistant.Source{}
			}
			es.send("sources", sources)
		},
		func(fragment string) error {
			return es.send("delta", deltaEvent{Content: fragment})
		},
	)
	s.finish(es, "ask", err)
}

// distill handles POST /api/v1/distill. Events: delta..., then done or error.
func (s *Server) distill(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant not configured: set DEEPSEEK_API_KEY")
		return
	}

	var req DistillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is required")
		return
	}

	es, ok := newEventStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	err := s.assistant.Distill(r.Context(), req.Texts, func(fragment string) error {
		return es.send("delta", deltaEvent{Content: fragment})
	})
	s.finish(es, "distill", err)
}

func (s *Server) finish(es *eventStream, op string, err error) {
	if err == nil {
		es.send("done", struct{}{})
		return
	}
	if !errors.Is(err, assistant.ErrNothingToDistill) {
		s.logger.Error(op+" failed", "error", err)
	}
	es.send("error", map[string]string{"error": err.Error()})
}
