package archive

import (
	"testing"
	"time"
)

func sampleArchive() []Conversation {
	gizmo := "g-1"
	day := func(d int) time.Time { return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC) }
	return []Conversation{
		{ID: "1", Title: "Letting go of fear", CreateTime: day(1), IsLester: true, Teacher: TeacherLester},
		{ID: "2", Title: "Imagination creates reality", CreateTime: day(3), Teacher: TeacherNeville},
		{ID: "3", Title: "Custom bot chat", CreateTime: day(2), GizmoID: &gizmo},
		{ID: "4", Title: "Fear of the unknown", CreateTime: day(4), Teacher: TeacherKrishnamurti},
	}
}

func ids(cs []Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestFilter_EmptyMatchesAllNewestFirst(t *testing.T) {
	got := ids(Filter{}.Apply(sampleArchive()))
	want := []string{"4", "2", "3", "1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFilter_Query(t *testing.T) {
	got := ids(Filter{Query: "  FEAR "}.Apply(sampleArchive()))
	if len(got) != 2 || got[0] != "4" || got[1] != "1" {
		t.Errorf("got %v", got)
	}
}

func TestFilter_Teacher(t *testing.T) {
	neville := TeacherNeville
	got := ids(Filter{Teacher: &neville}.Apply(sampleArchive()))
	if len(got) != 1 || got[0] != "2" {
		t.Errorf("got %v", got)
	}

	none := TeacherNone
	got = ids(Filter{Teacher: &none}.Apply(sampleArchive()))
	if len(got) != 1 || got[0] != "3" {
		t.Errorf("untagged: got %v", got)
	}
}

func TestFilter_Kinds(t *testing.T) {
	got := ids(Filter{Kinds: []Kind{KindLester, KindCustom}}.Apply(sampleArchive()))
	if len(got) != 2 || got[0] != "3" || got[1] != "1" {
		t.Errorf("got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleArchive())
	if s.Total != 4 {
		t.Errorf("total = %d", s.Total)
	}
	if s.ByTeacher[TeacherLester] != 1 || s.ByTeacher["none"] != 1 {
		t.Errorf("by teacher = %v", s.ByTeacher)
	}
	if s.ByKind[KindStandard] != 2 || s.ByKind[KindCustom] != 1 || s.ByKind[KindLester] != 1 {
		t.Errorf("by kind = %v", s.ByKind)
	}
}
