package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when a conversation id is unknown.
var ErrNotFound = errors.New("conversation not found")

// Teacher tags a conversation with the source figure it is about.
type Teacher string

const (
	TeacherNone         Teacher = ""
	TeacherLester       Teacher = "lester"
	TeacherNeville      Teacher = "neville"
	TeacherOsho         Teacher = "osho"
	TeacherKrishnamurti Teacher = "krishnamurti"
)

// Teachers lists the recognised teachers in detection precedence order.
var Teachers = []Teacher{TeacherLester, TeacherNeville, TeacherOsho, TeacherKrishnamurti}

// ParseTeacher accepts a teacher name as used in query strings.
// "none" and "" both map to TeacherNone.
func ParseTeacher(s string) (Teacher, error) {
	switch t := Teacher(s); t {
	case TeacherNone, "none":
		return TeacherNone, nil
	case TeacherLester, TeacherNeville, TeacherOsho, TeacherKrishnamurti:
		return t, nil
	}
	return TeacherNone, fmt.Errorf("unknown teacher %q", s)
}

// MarshalJSON encodes TeacherNone as null.
func (t Teacher) MarshalJSON() ([]byte, error) {
	if t == TeacherNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *Teacher) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TeacherNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Teacher(s)
	return nil
}

// Conversation is one `## <n>. <title>` block of an exported archive.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreateTime   time.Time `json:"createTime"`
	GizmoID      *string   `json:"gizmoId"` // custom GPT id; the Markdown export never carries one
	IsLester     bool      `json:"isLester"`
	Teacher      Teacher   `json:"teacher"`
	MessageCount int       `json:"messageCount"`
	Markdown     string    `json:"markdown"`
}

// WireConversation is the form a Conversation takes when it leaves the parse
// worker. CreateTime is an RFC 3339 string.
type WireConversation struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	CreateTime   string  `json:"createTime"`
	GizmoID      *string `json:"gizmoId"`
	IsLester     bool    `json:"isLester"`
	Teacher      Teacher `json:"teacher"`
	MessageCount int     `json:"messageCount"`
	Markdown     string  `json:"markdown"`
}

// ToWire converts c for transfer out of the parse worker.
func ToWire(c Conversation) WireConversation {
	return WireConversation{
		ID:           c.ID,
		Title:        c.Title,
		CreateTime:   c.CreateTime.Format(time.RFC3339),
		GizmoID:      c.GizmoID,
		IsLester:     c.IsLester,
		Teacher:      c.Teacher,
		MessageCount: c.MessageCount,
		Markdown:     c.Markdown,
	}
}

// FromWire is the inverse of ToWire.
func FromWire(w WireConversation) (Conversation, error) {
	ts, err := time.Parse(time.RFC3339, w.CreateTime)
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation %s: create time: %w", w.ID, err)
	}
	return Conversation{
		ID:           w.ID,
		Title:        w.Title,
		CreateTime:   ts,
		GizmoID:      w.GizmoID,
		IsLester:     w.IsLester,
		Teacher:      w.Teacher,
		MessageCount: w.MessageCount,
		Markdown:     w.Markdown,
	}, nil
}

// Kind is the coarse conversation type shown in listings.
type Kind string

const (
	KindLester   Kind = "lester"
	KindCustom   Kind = "custom"
	KindStandard Kind = "standard"
)

// KindOf classifies c: Lester first, then custom GPTs, else standard.
func KindOf(c Conversation) Kind {
	if c.IsLester {
		return KindLester
	}
	if c.GizmoID != nil && *c.GizmoID != "" {
		return KindCustom
	}
	return KindStandard
}
