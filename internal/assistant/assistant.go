package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
	"github.com/MikeSquared-Agency/scribe/internal/deepseek"
)

// ErrNothingToDistill is returned by Distill when no text was selected.
var ErrNothingToDistill = errors.New("no text to distill")

// Streamer is the completion service the assistant talks to.
type Streamer interface {
	Stream(ctx context.Context, messages []deepseek.Message, maxTokens int, fn func(string) error) error
}

type Assistant struct {
	llm    Streamer
	logger *slog.Logger
}

func New(llm Streamer, logger *slog.Logger) *Assistant {
	return &Assistant{llm: llm, logger: logger}
}

// Ask answers query from the archive. onSources receives the chosen sources
// before any text; onFragment receives the answer as it streams. An empty
// systemPrompt selects the built-in one.
func (a *Assistant) Ask(
	ctx context.Context,
	query string,
	conversations []archive.Conversation,
	systemPrompt string,
	onSources func([]Source),
	onFragment func(string) error,
) error {
	sources := FindRelevant(conversations, query, DefaultSourceLimit)
	if onSources != nil {
		onSources(sources)
	}

	if len(sources) == 0 {
		a.logger.Info("no relevant conversations", "query", query)
		return onFragment(NoSourcesAnswer)
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	quoted := BuildContext(sources, conversations)

	a.logger.Info("asking",
		"query", query,
		"sources", len(sources),
		"context_len", len(quoted),
	)

	messages := []deepseek.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(askUserPrompt, quoted, query)},
	}
	if err := a.llm.Stream(ctx, messages, deepseek.DefaultMaxTokens, onFragment); err != nil {
		return fmt.Errorf("llm answer: %w", err)
	}
	return nil
}

// Distill condenses the selected texts into one short piece in the book
// style, streamed to onFragment.
func (a *Assistant) Distill(ctx context.Context, texts []string, onFragment func(string) error) error {
	var kept []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ErrNothingToDistill
	}

	combined := strings.Join(kept, "\n\n---\n\n")
	a.logger.Info("distilling", "texts", len(kept), "len", len(combined))

	messages := []deepseek.Message{
		{Role: "system", Content: bookStyleSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(distillUserPrompt, combined)},
	}
	if err := a.llm.Stream(ctx, messages, deepseek.DefaultMaxTokens, onFragment); err != nil {
		return fmt.Errorf("llm distill: %w", err)
	}
	return nil
}
