package archive

import (
	"slices"
	"sort"
	"strings"
)

// Filter narrows a conversation listing. Zero fields match everything.
type Filter struct {
	Query   string   // case-insensitive title substring
	Teacher *Teacher // nil means any teacher; TeacherNone means untagged only
	Kinds   []Kind   // any of these kinds
}

// Apply returns the matching conversations, newest first.
func (f Filter) Apply(conversations []Conversation) []Conversation {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	var out []Conversation
	for _, c := range conversations {
		if f.Teacher != nil && c.Teacher != *f.Teacher {
			continue
		}
		if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, KindOf(c)) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(c.Title), query) {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreateTime.After(out[j].CreateTime)
	})
	return out
}

// Stats summarises an archive by teacher and kind.
type Stats struct {
	Total     int             `json:"total"`
	ByTeacher map[Teacher]int `json:"by_teacher"`
	ByKind    map[Kind]int    `json:"by_kind"`
}

// Summarize counts conversations per teacher and per kind. Untagged
// conversations are counted under "none".
func Summarize(conversations []Conversation) Stats {
	s := Stats{
		Total:     len(conversations),
		ByTeacher: make(map[Teacher]int),
		ByKind:    make(map[Kind]int),
	}
	for _, c := range conversations {
		t := c.Teacher
		if t == TeacherNone {
			t = "none"
		}
		s.ByTeacher[t]++
		s.ByKind[KindOf(c)]++
	}
	return s
}
