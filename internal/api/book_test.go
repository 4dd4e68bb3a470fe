package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/scribe/internal/book"
	"github.com/MikeSquared-Agency/scribe/internal/localstore"
)

func newBookServer(t *testing.T) *Server {
	t.Helper()
	db, err := localstore.Open(filepath.Join(t.TempDir(), "scribe.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewServer(8760, "", Deps{Store: db, Book: db, Logger: discardLogger()})
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createChapter(t *testing.T, srv *Server, title string) book.Chapter {
	t.Helper()
	w := do(srv, jsonRequest("POST", "/api/v1/chapters", fmt.Sprintf(`{"title":%q}`, title)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create chapter: %d %s", w.Code, w.Body.String())
	}
	var c book.Chapter
	if err := json.NewDecoder(w.Body).Decode(&c); err != nil {
		t.Fatalf("decode chapter: %v", err)
	}
	return c
}

func createNote(t *testing.T, srv *Server, body string) book.Note {
	t.Helper()
	w := do(srv, jsonRequest("POST", "/api/v1/notes", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: %d %s", w.Code, w.Body.String())
	}
	var n book.Note
	if err := json.NewDecoder(w.Body).Decode(&n); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	return n
}

func listNoteTexts(t *testing.T, srv *Server, chapter string) []string {
	t.Helper()
	w := do(srv, httptest.NewRequest("GET", "/api/v1/notes?chapter="+chapter, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list notes: %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Notes []book.Note `json:"notes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode notes: %v", err)
	}
	texts := make([]string, len(body.Notes))
	for i, n := range body.Notes {
		texts[i] = n.Text
	}
	return texts
}

func TestChapters_CRUD(t *testing.T) {
	srv := newBookServer(t)

	first := createChapter(t, srv, "Att släppa taget")
	second := createChapter(t, srv, "Frihet")
	if first.Order != 0 || second.Order != 1 {
		t.Errorf("orders = %d, %d", first.Order, second.Order)
	}

	w := do(srv, jsonRequest("PATCH", "/api/v1/chapters/"+first.ID, `{"description":"Början"}`))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"description":"Början"`) {
		t.Errorf("patch: %d %s", w.Code, w.Body.String())
	}

	body := fmt.Sprintf(`{"ids":[%q,%q]}`, second.ID, first.ID)
	if w := do(srv, jsonRequest("PUT", "/api/v1/chapters/order", body)); w.Code != http.StatusNoContent {
		t.Errorf("reorder: %d %s", w.Code, w.Body.String())
	}

	w = do(srv, httptest.NewRequest("GET", "/api/v1/chapters", nil))
	var list struct {
		Chapters []book.Chapter `json:"chapters"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Chapters) != 2 || list.Chapters[0].ID != second.ID {
		t.Errorf("chapters = %+v", list.Chapters)
	}

	if w := do(srv, httptest.NewRequest("DELETE", "/api/v1/chapters/"+second.ID, nil)); w.Code != http.StatusNoContent {
		t.Errorf("delete: %d", w.Code)
	}
	if w := do(srv, httptest.NewRequest("GET", "/api/v1/chapters/"+second.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestChapters_Errors(t *testing.T) {
	srv := newBookServer(t)
	c := createChapter(t, srv, "A")

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"blank title", jsonRequest("POST", "/api/v1/chapters", `{"title":"  "}`), http.StatusBadRequest},
		{"bad json", jsonRequest("POST", "/api/v1/chapters", `{`), http.StatusBadRequest},
		{"blank rename", jsonRequest("PATCH", "/api/v1/chapters/"+c.ID, `{"title":""}`), http.StatusBadRequest},
		{"unknown chapter", jsonRequest("PATCH", "/api/v1/chapters/nope", `{"title":"x"}`), http.StatusNotFound},
		{"partial order", jsonRequest("PUT", "/api/v1/chapters/order", `{"ids":[]}`), http.StatusBadRequest},
		{"delete unknown", httptest.NewRequest("DELETE", "/api/v1/chapters/nope", nil), http.StatusNotFound},
		{"export unknown", httptest.NewRequest("GET", "/api/v1/chapters/nope/export", nil), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(srv, tt.req); w.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestNotes_Lifecycle(t *testing.T) {
	srv := newBookServer(t)
	ch := createChapter(t, srv, "Kapitel")

	n := createNote(t, srv, fmt.Sprintf(
		`{"chapter_id":%q,"text":"Let go.","comment":"bra","source_conversation_id":"c1","source_conversation_title":"Lester on release"}`, ch.ID))
	if n.Status != book.StatusUnused || n.SourceType != book.SourceConversation || n.OriginalText != "Let go." {
		t.Errorf("note = %+v", n)
	}
	createNote(t, srv, fmt.Sprintf(`{"chapter_id":%q,"text":"Distilled.","source_type":"ai-response"}`, ch.ID))

	w := do(srv, jsonRequest("PATCH", "/api/v1/notes/"+n.ID, `{"text":"Let it all go."}`))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"edited"`) {
		t.Errorf("patch: %d %s", w.Code, w.Body.String())
	}

	if got := listNoteTexts(t, srv, ch.ID); len(got) != 2 || got[0] != "Let it all go." {
		t.Errorf("chapter notes = %v", got)
	}

	if w := do(srv, jsonRequest("POST", "/api/v1/notes/"+n.ID+"/move", `{"chapter_id":null}`)); w.Code != http.StatusNoContent {
		t.Errorf("move: %d %s", w.Code, w.Body.String())
	}
	if got := listNoteTexts(t, srv, book.Unsorted); len(got) != 1 || got[0] != "Let it all go." {
		t.Errorf("unsorted = %v", got)
	}

	if w := do(srv, httptest.NewRequest("DELETE", "/api/v1/notes/"+n.ID, nil)); w.Code != http.StatusNoContent {
		t.Errorf("delete: %d", w.Code)
	}
	if w := do(srv, httptest.NewRequest("GET", "/api/v1/notes/"+n.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestNotes_MoveAndReorder(t *testing.T) {
	srv := newBookServer(t)
	ch := createChapter(t, srv, "K")
	a := createNote(t, srv, `{"text":"a"}`)
	b := createNote(t, srv, `{"text":"b"}`)

	body := fmt.Sprintf(`{"ids":[%q,%q],"chapter_id":%q}`, b.ID, a.ID, ch.ID)
	if w := do(srv, jsonRequest("POST", "/api/v1/notes/move", body)); w.Code != http.StatusNoContent {
		t.Fatalf("bulk move: %d %s", w.Code, w.Body.String())
	}
	if got := listNoteTexts(t, srv, ch.ID); strings.Join(got, ",") != "b,a" {
		t.Errorf("after move = %v", got)
	}

	body = fmt.Sprintf(`{"chapter":%q,"ids":[%q,%q]}`, ch.ID, a.ID, b.ID)
	if w := do(srv, jsonRequest("PUT", "/api/v1/notes/order", body)); w.Code != http.StatusNoContent {
		t.Fatalf("reorder: %d %s", w.Code, w.Body.String())
	}
	if got := listNoteTexts(t, srv, ch.ID); strings.Join(got, ",") != "a,b" {
		t.Errorf("after reorder = %v", got)
	}

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"move without ids", jsonRequest("POST", "/api/v1/notes/move", `{"chapter_id":null}`), http.StatusBadRequest},
		{"move to unknown chapter", jsonRequest("POST", "/api/v1/notes/"+a.ID+"/move", `{"chapter_id":"nope"}`), http.StatusNotFound},
		{"move unknown note", jsonRequest("POST", "/api/v1/notes/nope/move", `{"chapter_id":null}`), http.StatusNotFound},
		{"reorder without chapter", jsonRequest("PUT", "/api/v1/notes/order", `{"ids":[]}`), http.StatusBadRequest},
		{"blank note", jsonRequest("POST", "/api/v1/notes", `{"text":" "}`), http.StatusBadRequest},
		{"bad status", jsonRequest("PATCH", "/api/v1/notes/"+a.ID, `{"status":"archived"}`), http.StatusBadRequest},
		{"note in unknown chapter", jsonRequest("POST", "/api/v1/notes", `{"text":"x","chapter_id":"nope"}`), http.StatusNotFound},
		{"list unknown chapter", httptest.NewRequest("GET", "/api/v1/notes?chapter=nope", nil), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(srv, tt.req); w.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestExportChapter(t *testing.T) {
	srv := newBookServer(t)
	ch := createChapter(t, srv, "Att släppa taget")
	createNote(t, srv, fmt.Sprintf(`{"chapter_id":%q,"text":"Let go.","comment":"öppning"}`, ch.ID))
	createNote(t, srv, fmt.Sprintf(`{"chapter_id":%q,"text":"Again."}`, ch.ID))

	w := do(srv, httptest.NewRequest("GET", "/api/v1/chapters/"+ch.ID+"/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	want := "## Att släppa taget\n\nLet go.\n> Kommentar: öppning\n\n---\n\nAgain."
	if w.Body.String() != want {
		t.Errorf("body = %q\nwant %q", w.Body.String(), want)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "att-slappa-taget.md") {
		t.Errorf("content disposition = %q", cd)
	}

	createNote(t, srv, `{"text":"Loose."}`)
	w = do(srv, httptest.NewRequest("GET", "/api/v1/chapters/unsorted/export", nil))
	if w.Code != http.StatusOK || w.Body.String() != "## Osorterade\n\nLoose." {
		t.Errorf("unsorted export: %d %q", w.Code, w.Body.String())
	}
}

func TestBookRoutes_NotConfigured(t *testing.T) {
	srv := newTestServer(t, &memStore{}, nil, "")

	for _, target := range []string{"/api/v1/chapters", "/api/v1/notes"} {
		if w := do(srv, httptest.NewRequest("GET", target, nil)); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", target, w.Code)
		}
	}
}
