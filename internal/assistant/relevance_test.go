package assistant

import (
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
)

func conv(id, title, markdown string) archive.Conversation {
	return archive.Conversation{ID: id, Title: title, Markdown: markdown}
}

func TestKeywords_ExpandsSynonyms(t *testing.T) {
	got := Keywords("What is FEAR to me")
	want := []string{"what", "fear", "rädsla", "rädd", "ångest", "oro", "skräck", "afraid", "anxiety", "worried"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("keywords = %v, want %v", got, want)
	}
}

func TestKeywords_DropsShortWordsAndDuplicates(t *testing.T) {
	got := Keywords("is  a love kärlek")
	if got[0] != "love" {
		t.Errorf("keywords = %v", got)
	}
	seen := map[string]int{}
	for _, w := range got {
		seen[w]++
		if seen[w] > 1 {
			t.Errorf("duplicate keyword %q", w)
		}
	}
	if len(Keywords("a an is")) != 0 {
		t.Error("expected no keywords for short words")
	}
}

func TestKeywords_CountsRunesNotBytes(t *testing.T) {
	// "öga" is three runes but five bytes.
	if got := Keywords("öga"); len(got) != 1 {
		t.Errorf("keywords = %v", got)
	}
	// "år" is two runes.
	if got := Keywords("år"); len(got) != 0 {
		t.Errorf("keywords = %v", got)
	}
}

func TestFindRelevant_TitleOutranksBody(t *testing.T) {
	convs := []archive.Conversation{
		conv("body", "Morning notes", "today I talked about meditation"),
		conv("title", "Meditation practice", "sitting"),
		conv("none", "Groceries", "milk and bread"),
	}

	sources := FindRelevant(convs, "meditation", 10)
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %+v", sources)
	}
	if sources[0].ID != "title" || sources[1].ID != "body" {
		t.Errorf("order = %s, %s", sources[0].ID, sources[1].ID)
	}
	if sources[0].Score != titleHitScore {
		t.Errorf("title score = %d", sources[0].Score)
	}
	if sources[1].Score != bodyHitScore {
		t.Errorf("body score = %d", sources[1].Score)
	}
}

func TestFindRelevant_SynonymMatch(t *testing.T) {
	convs := []archive.Conversation{conv("1", "Om rädsla", "")}
	sources := FindRelevant(convs, "fear", 10)
	if len(sources) != 1 || sources[0].ID != "1" {
		t.Errorf("sources = %+v", sources)
	}
}

func TestFindRelevant_BodyWindow(t *testing.T) {
	far := strings.Repeat("x", bodyScanRunes) + " meditation"
	sources := FindRelevant([]archive.Conversation{conv("1", "Untitled", far)}, "meditation", 10)
	if len(sources) != 0 {
		t.Errorf("expected keyword past the scan window to be ignored, got %+v", sources)
	}
}

func TestFindRelevant_LimitAndSnippet(t *testing.T) {
	long := strings.Repeat("å", 600)
	var convs []archive.Conversation
	for i := 0; i < 15; i++ {
		convs = append(convs, conv(string(rune('a'+i)), "Love letter", long))
	}

	sources := FindRelevant(convs, "love", 10)
	if len(sources) != 10 {
		t.Fatalf("expected 10 sources, got %d", len(sources))
	}
	if sources[0].ID != "a" {
		t.Errorf("ties should keep archive order, first = %s", sources[0].ID)
	}
	want := strings.Repeat("å", snippetRunes) + "..."
	if sources[0].Snippet != want {
		t.Errorf("snippet has %d runes", len([]rune(sources[0].Snippet)))
	}
}

func TestFindRelevant_EmptyQuery(t *testing.T) {
	if got := FindRelevant([]archive.Conversation{conv("1", "Anything", "")}, "  ", 10); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestBuildContext(t *testing.T) {
	convs := []archive.Conversation{
		conv("x1", "First", strings.Repeat("a", contextRunes+100)),
		conv("x2", "Second", "short"),
	}
	sources := []Source{
		{ID: "x2", Title: "Second"},
		{ID: "missing", Title: "Gone"},
		{ID: "x1", Title: "First"},
	}

	got := BuildContext(sources, convs)
	if !strings.HasPrefix(got, "--- Konversation 1 [ID:x2]: \"Second\" ---\nshort\n") {
		t.Errorf("context starts %q", got[:60])
	}
	if !strings.Contains(got, "--- Konversation 3 [ID:x1]: \"First\" ---\n") {
		t.Error("expected third source header")
	}
	if strings.Contains(got, "missing") {
		t.Error("unknown source should be skipped")
	}
	if strings.Contains(got, strings.Repeat("a", contextRunes+1)) {
		t.Error("quoted markdown exceeds the context window")
	}
}
