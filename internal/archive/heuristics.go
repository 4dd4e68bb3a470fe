package archive

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// teacherScanRunes bounds how much of a conversation DetectTeacher reads.
const teacherScanRunes = 3000

var teacherKeywords = []struct {
	teacher  Teacher
	keywords []string
}{
	{TeacherLester, []string{"lester", "levenson", "sedona"}},
	{TeacherNeville, []string{"neville", "goddard"}},
	{TeacherOsho, []string{"osho", "rajneesh"}},
	{TeacherKrishnamurti, []string{"krishnamurti", "jiddu"}},
}

var (
	createdLabelRe = regexp.MustCompile(`\*\*Skapad:\*\*\s*(.+)`)
	createdDateRe  = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})\s+(\d{2}):(\d{2}):(\d{2})`)
	totalCountRe   = regexp.MustCompile(`\*\*Totalt (\d+) meddelanden\*\*`)
	turnHeaderRe   = regexp.MustCompile(`(?i)\*{2,4}(Du|ChatGPT|assistant|user)\*{2,4}\s*\(`)
)

// DetectTeacher returns the first teacher whose keywords occur in the title
// or the first 3000 runes of markdown. Matching is case-insensitive.
func DetectTeacher(title, markdown string) Teacher {
	text := strings.ToLower(title + " " + prefixRunes(markdown, teacherScanRunes))
	for _, tk := range teacherKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(text, kw) {
				return tk.teacher
			}
		}
	}
	return TeacherNone
}

// IsLester reports whether the conversation is about Lester Levenson.
func IsLester(title, markdown string) bool {
	lowerTitle := strings.ToLower(title)
	if strings.Contains(lowerTitle, "lester") || strings.Contains(lowerTitle, "levenson") {
		return true
	}
	return strings.Contains(strings.ToLower(markdown), "lester levenson")
}

// ParseCreated reads the "**Skapad:** YYYY-MM-DD HH:MM:SS" annotation as
// local wall-clock time. It returns now when the annotation is missing.
func ParseCreated(span string, now time.Time) time.Time {
	label := createdLabelRe.FindStringSubmatch(span)
	if label == nil {
		return now
	}
	m := createdDateRe.FindStringSubmatch(strings.TrimSpace(label[1]))
	if m == nil {
		return now
	}
	n := make([]int, 6)
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}
	return time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, time.Local)
}

// CountMessages prefers the "**Totalt N meddelanden**" annotation and
// otherwise counts emphasised speaker headers such as "**Du** (".
func CountMessages(span string) int {
	if m := totalCountRe.FindStringSubmatch(span); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return len(turnHeaderRe.FindAllStringIndex(span, -1))
}

// prefixRunes returns s cut after n runes.
func prefixRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
