package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
)

// ConversationStore persists a parsed archive, replacing what was there.
type ConversationStore interface {
	SaveConversations(ctx context.Context, conversations []archive.Conversation) error
}

// Publisher sends events to the bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Importer parses uploaded archives and stores the result.
type Importer struct {
	driver  *Driver
	store   ConversationStore
	bus     Publisher // optional
	history *History  // optional
	logger  *slog.Logger
}

// Result summarises a finished import.
type Result struct {
	File          string        `json:"file"`
	Conversations int           `json:"conversations"`
	Stats         archive.Stats `json:"stats"`
	Duration      time.Duration `json:"duration_ns"`
}

func NewImporter(driver *Driver, store ConversationStore, bus Publisher, logger *slog.Logger) *Importer {
	return &Importer{
		driver: driver,
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// SetHistory makes the importer record every run in h.
func (im *Importer) SetHistory(h *History) {
	im.history = h
}

// Import parses file and saves its conversations. onProgress may be nil.
func (im *Importer) Import(ctx context.Context, file File, onProgress ProgressFunc) (*Result, error) {
	if err := CheckFile(file); err != nil {
		return nil, err
	}

	start := time.Now()
	im.logger.Info("import started", "file", file.Name(), "size", file.Size())

	conversations, err := im.driver.Parse(ctx, file, func(p Progress) {
		im.logger.Debug("import progress", "file", file.Name(), "current", p.Current, "status", p.Status)
		im.publish(hermes.SubjectImportProgress, hermes.ImportProgressEvent{
			File:    file.Name(),
			Current: p.Current,
			Total:   p.Total,
			Status:  p.Status,
		})
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		im.fail(file, start, err)
		return nil, fmt.Errorf("parse %s: %w", file.Name(), err)
	}

	if err := im.store.SaveConversations(ctx, conversations); err != nil {
		im.fail(file, start, err)
		return nil, fmt.Errorf("save conversations: %w", err)
	}

	res := &Result{
		File:          file.Name(),
		Conversations: len(conversations),
		Stats:         archive.Summarize(conversations),
		Duration:      time.Since(start),
	}

	im.logger.Info("import complete",
		"file", res.File,
		"conversations", res.Conversations,
		"duration", res.Duration.String(),
	)
	im.record(Run{
		File:          res.File,
		StartedAt:     start.UTC(),
		FinishedAt:    time.Now().UTC(),
		Conversations: res.Conversations,
	})
	im.publish(hermes.SubjectImportCompleted, hermes.ImportCompletedEvent{
		File:          res.File,
		Conversations: res.Conversations,
		DurationMS:    res.Duration.Milliseconds(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})

	return res, nil
}

// HandleImportRequested is the bus handler for import requests naming a
// local file.
func (im *Importer) HandleImportRequested(subject string, data []byte) {
	var req hermes.ImportRequest
	if err := json.Unmarshal(data, &req); err != nil {
		im.logger.Error("failed to parse import request", "subject", subject, "error", err)
		return
	}
	if req.Path == "" {
		im.logger.Error("import request without path", "subject", subject)
		return
	}

	file, err := OpenPath(req.Path)
	if err != nil {
		im.logger.Error("cannot open requested archive", "path", req.Path, "error", err)
		im.publish(hermes.SubjectImportFailed, hermes.ImportFailedEvent{File: req.Path, Error: err.Error()})
		return
	}

	if _, err := im.Import(context.Background(), file, nil); err != nil {
		im.logger.Error("requested import failed", "path", req.Path, "error", err)
	}
}

func (im *Importer) fail(file File, start time.Time, err error) {
	im.logger.Error("import failed", "file", file.Name(), "error", err)
	im.publish(hermes.SubjectImportFailed, hermes.ImportFailedEvent{File: file.Name(), Error: err.Error()})
	im.record(Run{
		File:       file.Name(),
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
		Error:      err.Error(),
	})
}

func (im *Importer) record(r Run) {
	if im.history == nil {
		return
	}
	if err := im.history.Record(r); err != nil {
		im.logger.Warn("failed to record import history", "error", err)
	}
}

func (im *Importer) publish(subject string, evt any) {
	if im.bus == nil {
		return
	}
	if err := im.bus.Publish(subject, evt); err != nil {
		im.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
