// Package book holds the chapters and notes a user curates out of the
// conversation archive. Persistence lives in the store packages; the rules
// that both stores share live here.
package book

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrNoteNotFound    = errors.New("note not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid book request")
)

// Unsorted addresses the notes that belong to no chapter.
const Unsorted = "unsorted"

// UnsortedTitle is the heading used when exporting unsorted notes.
const UnsortedTitle = "Osorterade"

type NoteStatus string

const (
	StatusUnused NoteStatus = "unused"
	StatusUsed   NoteStatus = "used"
	StatusEdited NoteStatus = "edited"
)

func (s NoteStatus) Valid() bool {
	switch s {
	case StatusUnused, StatusUsed, StatusEdited:
		return true
	}
	return false
}

// SourceType records where a note's text was taken from.
type SourceType string

const (
	SourceConversation SourceType = "conversation"
	SourceAIResponse   SourceType = "ai-response"
)

func (s SourceType) Valid() bool {
	return s == SourceConversation || s == SourceAIResponse
}

type Chapter struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	NoteCount   int       `json:"note_count"`
}

type Note struct {
	ID                      string     `json:"id"`
	ChapterID               *string    `json:"chapter_id"`
	Text                    string     `json:"text"`
	OriginalText            string     `json:"original_text"`
	Comment                 string     `json:"comment"`
	Status                  NoteStatus `json:"status"`
	Order                   int        `json:"order"`
	SourceConversationID    *string    `json:"source_conversation_id"`
	SourceConversationTitle *string    `json:"source_conversation_title"`
	SourceType              SourceType `json:"source_type"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// NewChapter is a chapter about to be created.
type NewChapter struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (c *NewChapter) Validate() error {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return fmt.Errorf("%w: chapter title is required", ErrInvalid)
	}
	return nil
}

type ChapterUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (u *ChapterUpdate) Validate() error {
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return fmt.Errorf("%w: chapter title cannot be empty", ErrInvalid)
		}
		u.Title = &t
	}
	return nil
}

func (u ChapterUpdate) Apply(c Chapter) Chapter {
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	return c
}

// NewNote is a note about to be saved into a chapter, or into the unsorted
// pile when ChapterID is nil.
type NewNote struct {
	ChapterID               *string    `json:"chapter_id"`
	Text                    string     `json:"text"`
	Comment                 string     `json:"comment"`
	SourceConversationID    *string    `json:"source_conversation_id"`
	SourceConversationTitle *string    `json:"source_conversation_title"`
	SourceType              SourceType `json:"source_type"`
}

func (n *NewNote) Validate() error {
	if strings.TrimSpace(n.Text) == "" {
		return fmt.Errorf("%w: note text is required", ErrInvalid)
	}
	if n.SourceType == "" {
		n.SourceType = SourceConversation
	}
	if !n.SourceType.Valid() {
		return fmt.Errorf("%w: unknown source type %q", ErrInvalid, n.SourceType)
	}
	return nil
}

// Build turns n into a fresh note at position order.
func (n NewNote) Build(order int, now time.Time) Note {
	return Note{
		ID:                      NewID(),
		ChapterID:               n.ChapterID,
		Text:                    n.Text,
		OriginalText:            n.Text,
		Comment:                 n.Comment,
		Status:                  StatusUnused,
		Order:                   order,
		SourceConversationID:    n.SourceConversationID,
		SourceConversationTitle: n.SourceConversationTitle,
		SourceType:              n.SourceType,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

type NoteUpdate struct {
	Text    *string     `json:"text"`
	Comment *string     `json:"comment"`
	Status  *NoteStatus `json:"status"`
}

func (u NoteUpdate) Validate() error {
	if u.Text != nil && strings.TrimSpace(*u.Text) == "" {
		return fmt.Errorf("%w: note text cannot be empty", ErrInvalid)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unknown note status %q", ErrInvalid, *u.Status)
	}
	return nil
}

// Apply returns n with u applied. Changing the text marks the note edited
// unless the update also sets a status explicitly.
func (u NoteUpdate) Apply(n Note, now time.Time) Note {
	if u.Text != nil && *u.Text != n.Text {
		n.Text = *u.Text
		n.Status = StatusEdited
	}
	if u.Comment != nil {
		n.Comment = *u.Comment
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
	n.UpdatedAt = now
	return n
}

// CheckOrder reports whether ids is a permutation of current.
func CheckOrder(current, ids []string) error {
	if len(ids) != len(current) {
		return fmt.Errorf("%w: order lists %d ids, expected %d", ErrInvalid, len(ids), len(current))
	}
	want := make(map[string]bool, len(current))
	for _, id := range current {
		want[id] = true
	}
	for _, id := range ids {
		if !want[id] {
			return fmt.Errorf("%w: order has unknown or repeated id %q", ErrInvalid, id)
		}
		delete(want, id)
	}
	return nil
}

// ChapterFilter interprets a chapter selector: "" for every note, Unsorted
// for notes outside any chapter, anything else a chapter id.
type ChapterFilter string

func (f ChapterFilter) All() bool      { return f == "" }
func (f ChapterFilter) Unsorted() bool { return f == Unsorted }

// ChapterID is the chapter the filter names, or nil for the unsorted pile.
func (f ChapterFilter) ChapterID() *string {
	if f.All() || f.Unsorted() {
		return nil
	}
	id := string(f)
	return &id
}

// NewID generates chapter and note ids.
var NewID = uuid.NewString
