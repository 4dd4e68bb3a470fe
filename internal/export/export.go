// Package export renders conversations and book chapters as downloadable
// Markdown.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
	"github.com/MikeSquared-Agency/scribe/internal/book"
)

const (
	maxFilenameRunes = 100
	combinedDivider  = "\n\n---\n\n# ═══════════════════════════════════════\n\n"
)

var (
	unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	slugRe           = regexp.MustCompile(`[^a-z0-9]+`)
	slugFolds        = strings.NewReplacer("å", "a", "ä", "a", "ö", "o")
)

// KindLabel is the human label for a conversation's kind.
func KindLabel(c archive.Conversation) string {
	switch archive.KindOf(c) {
	case archive.KindLester:
		return "Lester/Levenson"
	case archive.KindCustom:
		return "Custom GPT"
	}
	return "Standard"
}

func header(title string, c archive.Conversation) string {
	return fmt.Sprintf("# %s\n\n**Datum:** %s\n**Meddelanden:** %d\n**Typ:** %s\n\n---\n\n",
		title, c.CreateTime.Format("2006-01-02 15:04"), c.MessageCount, KindLabel(c))
}

// ConversationMarkdown is a single conversation with a metadata header.
func ConversationMarkdown(c archive.Conversation) string {
	return header(c.Title, c) + c.Markdown
}

// CombinedMarkdown joins several conversations into one numbered document.
// A single conversation is rendered as by ConversationMarkdown.
func CombinedMarkdown(conversations []archive.Conversation) string {
	if len(conversations) == 1 {
		return ConversationMarkdown(conversations[0])
	}
	parts := make([]string, len(conversations))
	for i, c := range conversations {
		parts[i] = header(fmt.Sprintf("%d. %s", i+1, c.Title), c) + c.Markdown
	}
	return strings.Join(parts, combinedDivider)
}

// SanitizeFilename strips characters that are not allowed in file names,
// replaces whitespace runs with underscores and truncates the result.
func SanitizeFilename(name string) string {
	name = unsafeFilenameRe.ReplaceAllString(name, "")
	name = whitespaceRe.ReplaceAllString(name, "_")
	if r := []rune(name); len(r) > maxFilenameRunes {
		name = string(r[:maxFilenameRunes])
	}
	return name
}

// Filename is the download name for a single conversation.
func Filename(c archive.Conversation) string {
	return fmt.Sprintf("%s_%s.md", SanitizeFilename(c.Title), c.CreateTime.Format("2006-01-02"))
}

// CombinedFilename is the download name for a multi-conversation export.
func CombinedFilename(now time.Time) string {
	return "chat_export_" + now.Format("2006-01-02_1504") + ".md"
}

// ChapterMarkdown renders a chapter heading followed by its notes in order.
// Each note's comment is quoted under it and notes are separated by a rule.
func ChapterMarkdown(title string, notes []book.Note) string {
	if len(notes) == 0 {
		return "## " + title + "\n"
	}
	var b strings.Builder
	b.WriteString("## " + title + "\n")
	for i, n := range notes {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString("\n" + n.Text + "\n")
		if n.Comment != "" {
			b.WriteString("> Kommentar: " + n.Comment + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ChapterFilename is the download name for a chapter export.
func ChapterFilename(title string) string {
	slug := slugFolds.Replace(strings.ToLower(title))
	slug = strings.Trim(slugRe.ReplaceAllString(slug, "-"), "-")
	if slug == "" {
		slug = "kapitel"
	}
	return slug + ".md"
}
