package archive

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWireRoundTrip_PreservesInstant(t *testing.T) {
	gizmo := "g-123"
	c := Conversation{
		ID:           "abc",
		Title:        "T",
		CreateTime:   time.Date(2024, 3, 5, 10, 15, 0, 0, time.Local),
		GizmoID:      &gizmo,
		IsLester:     true,
		Teacher:      TeacherLester,
		MessageCount: 3,
		Markdown:     "## 1. T\n",
	}

	back, err := FromWire(ToWire(c))
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if !back.CreateTime.Equal(c.CreateTime) {
		t.Errorf("create time = %v, want %v", back.CreateTime, c.CreateTime)
	}
	if back.ID != c.ID || back.Title != c.Title || back.Teacher != c.Teacher ||
		back.MessageCount != c.MessageCount || back.Markdown != c.Markdown || !back.IsLester {
		t.Errorf("round trip mismatch: %+v", back)
	}
	if back.GizmoID == nil || *back.GizmoID != gizmo {
		t.Errorf("gizmo id = %v", back.GizmoID)
	}
}

func TestWireRoundTrip_TruncatesToSecond(t *testing.T) {
	c := Conversation{CreateTime: time.Date(2024, 1, 1, 0, 0, 1, 900_000_000, time.UTC)}

	back, err := FromWire(ToWire(c))
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if !back.CreateTime.Equal(c.CreateTime.Truncate(time.Second)) {
		t.Errorf("create time = %v", back.CreateTime)
	}
}

func TestFromWire_BadTimestamp(t *testing.T) {
	if _, err := FromWire(WireConversation{ID: "x", CreateTime: "not a date"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConversationJSON_NullFields(t *testing.T) {
	data, err := json.Marshal(ToWire(Conversation{ID: "x", Title: "T"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"teacher":null`) {
		t.Errorf("expected null teacher, got %s", s)
	}
	if !strings.Contains(s, `"gizmoId":null`) {
		t.Errorf("expected null gizmoId, got %s", s)
	}

	var w WireConversation
	if err := json.Unmarshal([]byte(`{"id":"y","teacher":"osho"}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Teacher != TeacherOsho {
		t.Errorf("teacher = %q", w.Teacher)
	}
	if err := json.Unmarshal([]byte(`{"id":"y","teacher":null}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Teacher != TeacherNone {
		t.Errorf("teacher = %q, want none", w.Teacher)
	}
}

func TestParseTeacher(t *testing.T) {
	if got, err := ParseTeacher("neville"); err != nil || got != TeacherNeville {
		t.Errorf("ParseTeacher(neville) = %q, %v", got, err)
	}
	if got, err := ParseTeacher("none"); err != nil || got != TeacherNone {
		t.Errorf("ParseTeacher(none) = %q, %v", got, err)
	}
	if _, err := ParseTeacher("plato"); err == nil {
		t.Error("expected error for unknown teacher")
	}
}

func TestKindOf(t *testing.T) {
	gizmo := "g"
	empty := ""

	if k := KindOf(Conversation{IsLester: true, GizmoID: &gizmo}); k != KindLester {
		t.Errorf("lester with gizmo = %q", k)
	}
	if k := KindOf(Conversation{GizmoID: &gizmo}); k != KindCustom {
		t.Errorf("gizmo = %q", k)
	}
	if k := KindOf(Conversation{GizmoID: &empty}); k != KindStandard {
		t.Errorf("empty gizmo = %q", k)
	}
	if k := KindOf(Conversation{}); k != KindStandard {
		t.Errorf("plain = %q", k)
	}
}
