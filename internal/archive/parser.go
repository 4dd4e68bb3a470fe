package archive

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// progressEvery is how many conversations pass between progress reports.
const progressEvery = 100

var headingRe = regexp.MustCompile(`(?m)^## (\d+)\. (.+)$`)

// ProgressFunc receives a completion percentage (0-100), the number of
// conversations produced so far and a short status line.
type ProgressFunc func(percent, count int, status string)

// ParseOptions tunes a parse run. The zero value is ready to use.
type ParseOptions struct {
	Progress ProgressFunc
	// Now supplies the fallback creation time for conversations without a
	// "Skapad:" annotation. Defaults to time.Now.
	Now func() time.Time
	// NewID generates conversation ids. Defaults to uuid.NewString.
	NewID func() string
}

func (o *ParseOptions) progress(percent, count int, status string) {
	if o.Progress != nil {
		o.Progress(percent, count, status)
	}
}

func (o *ParseOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *ParseOptions) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

// Heading is a detected `## <n>. <title>` line.
type Heading struct {
	Offset  int // byte offset of the line start
	Ordinal int // as written; not validated or required to be contiguous
	Title   string
}

// ScanHeadings finds every conversation heading in text, in source order.
func ScanHeadings(text string) []Heading {
	locs := headingRe.FindAllStringSubmatchIndex(text, -1)
	headings := make([]Heading, 0, len(locs))
	for _, loc := range locs {
		written := text[loc[2]:loc[3]]
		ordinal, _ := strconv.Atoi(written)
		title := strings.TrimSpace(text[loc[4]:loc[5]])
		if title == "" {
			// A blank heading still starts a conversation; name it by its number.
			title = "#" + written
		}
		headings = append(headings, Heading{
			Offset:  loc[0],
			Ordinal: ordinal,
			Title:   title,
		})
	}
	return headings
}

// ParseReader reads an entire archive from r and parses it. size is only used
// for status lines. Read failures and cancellation are returned; malformed
// content never is.
func ParseReader(ctx context.Context, r io.Reader, size int64, opts ParseOptions) ([]Conversation, error) {
	opts.progress(0, 0, "Reading file...")

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if size <= 0 {
		size = int64(len(data))
	}

	opts.progress(30, 0, fmt.Sprintf("File read (%d MB). Parsing conversations...", MegaBytes(size)))
	return ParseContext(ctx, string(data), opts)
}

// Parse splits text into conversations. Conversation i spans from heading i
// up to heading i+1; the last one runs to the end of text.
func Parse(text string, opts ParseOptions) []Conversation {
	conversations, _ := ParseContext(context.Background(), text, opts)
	return conversations
}

// ParseContext is Parse with cancellation, checked between batches of
// conversations. A cancelled run returns ctx.Err() and no conversations.
func ParseContext(ctx context.Context, text string, opts ParseOptions) ([]Conversation, error) {
	headings := ScanHeadings(text)
	total := len(headings)

	opts.progress(50, 0, fmt.Sprintf("Found %d conversations. Processing...", total))

	conversations := make([]Conversation, 0, total)
	for i, h := range headings {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		end := len(text)
		if i+1 < total {
			end = headings[i+1].Offset
		}
		span := text[h.Offset:end]

		conversations = append(conversations, Conversation{
			ID:           opts.newID(),
			Title:        h.Title,
			CreateTime:   ParseCreated(span, opts.now()),
			IsLester:     IsLester(h.Title, span),
			Teacher:      DetectTeacher(h.Title, span),
			MessageCount: CountMessages(span),
			Markdown:     span,
		})

		if i%progressEvery == 0 || i == total-1 {
			// Capped at 99 so that 100 is only reported with the result.
			percent := 50 + 49*(i+1)/total
			opts.progress(percent, len(conversations), fmt.Sprintf("Processing conversation %d/%d", i+1, total))
		}
	}

	opts.progress(100, len(conversations), fmt.Sprintf("Done! %d conversations", len(conversations)))
	return conversations, nil
}

// MegaBytes rounds a byte count to whole megabytes for status lines.
func MegaBytes(size int64) int64 {
	return (size + 512*1024) / (1024 * 1024)
}
