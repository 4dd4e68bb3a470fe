package assistant

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
)

const (
	DefaultSourceLimit = 10

	titleHitScore    = 10
	bodyHitScore     = 1
	bodyScanRunes    = 5000
	snippetRunes     = 500
	contextRunes     = 4000
	minKeywordLength = 3
)

// Source is a conversation chosen to answer a question.
type Source struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Score   int    `json:"score"`
}

var keywordExpansions = map[string][]string{
	"fear":          {"fear", "rädsla", "rädd", "ångest", "oro", "skräck", "afraid", "anxiety", "worried"},
	"rädsla":        {"fear", "rädsla", "rädd", "ångest", "oro", "skräck", "afraid", "anxiety"},
	"love":          {"love", "kärlek", "älska", "loving", "kärleksfull"},
	"kärlek":        {"love", "kärlek", "älska", "loving", "kärleksfull"},
	"acceptance":    {"acceptance", "acceptans", "acceptera", "accept", "godkännande"},
	"acceptans":     {"acceptance", "acceptans", "acceptera", "accept", "godkännande"},
	"release":       {"release", "släppa", "letting go", "släpp", "frigöra", "frigörelse"},
	"släppa":        {"release", "släppa", "letting go", "släpp", "frigöra", "frigörelse"},
	"lester":        {"lester", "levenson", "sedona"},
	"ego":           {"ego", "jag", "själv", "identity", "identitet"},
	"meditation":    {"meditation", "meditera", "stillhet", "mindfulness"},
	"awakening":     {"awakening", "uppvaknande", "vakna", "enlightenment", "upplysning"},
	"uppvaknande":   {"awakening", "uppvaknande", "vakna", "enlightenment", "upplysning"},
	"consciousness": {"consciousness", "medvetenhet", "medveten", "awareness"},
	"medvetenhet":   {"consciousness", "medvetenhet", "medveten", "awareness"},
}

// Keywords splits query into lower-case words longer than two characters
// and adds their synonyms. Order is first occurrence; no duplicates.
func Keywords(query string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) < minKeywordLength {
			continue
		}
		add(w)
		for _, e := range keywordExpansions[w] {
			add(e)
		}
	}
	return out
}

// FindRelevant scores conversations by keyword overlap with query and
// returns at most limit of them, best first. Conversations that match
// nothing are left out.
func FindRelevant(conversations []archive.Conversation, query string, limit int) []Source {
	words := Keywords(query)
	if len(words) == 0 {
		return nil
	}

	var sources []Source
	for _, c := range conversations {
		title := strings.ToLower(c.Title)
		body := strings.ToLower(prefixRunes(c.Markdown, bodyScanRunes))

		score := 0
		for _, w := range words {
			if strings.Contains(title, w) {
				score += titleHitScore
			}
			if strings.Contains(body, w) {
				score += bodyHitScore
			}
		}
		if score == 0 {
			continue
		}
		sources = append(sources, Source{
			ID:      c.ID,
			Title:   c.Title,
			Snippet: prefixRunes(c.Markdown, snippetRunes) + "...",
			Score:   score,
		})
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Score > sources[j].Score
	})
	if limit > 0 && len(sources) > limit {
		sources = sources[:limit]
	}
	return sources
}

// BuildContext quotes the start of every source conversation, each under a
// header carrying its [ID:...] marker so answers can cite it.
func BuildContext(sources []Source, conversations []archive.Conversation) string {
	byID := make(map[string]*archive.Conversation, len(conversations))
	for i := range conversations {
		byID[conversations[i].ID] = &conversations[i]
	}

	parts := make([]string, 0, len(sources))
	for i, s := range sources {
		c, ok := byID[s.ID]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Konversation %d [ID:%s]: \"%s\" ---\n%s\n",
			i+1, s.ID, s.Title, prefixRunes(c.Markdown, contextRunes)))
	}
	return strings.Join(parts, "\n\n")
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
