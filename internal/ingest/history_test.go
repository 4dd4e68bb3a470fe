package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHistory_RecordAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.json")

	h, err := LoadHistory(path)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if _, ok := h.Last(); ok {
		t.Error("new history should be empty")
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := h.Record(Run{File: "first.md", StartedAt: now, FinishedAt: now, Conversations: 3}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := h.Record(Run{File: "second.md", StartedAt: now, FinishedAt: now, Error: "boom"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("history file not created in nested dir: %v", err)
	}

	reloaded, err := LoadHistory(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	runs := reloaded.Runs()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].File != "second.md" || runs[0].Error != "boom" {
		t.Errorf("runs[0] = %+v", runs[0])
	}
	if runs[1].Conversations != 3 || !runs[1].StartedAt.Equal(now) {
		t.Errorf("runs[1] = %+v", runs[1])
	}
}

func TestHistory_Bounded(t *testing.T) {
	h, _ := LoadHistory("")
	for i := 0; i < maxHistory+10; i++ {
		h.Record(Run{File: fmt.Sprintf("f%d.md", i)})
	}
	runs := h.Runs()
	if len(runs) != maxHistory {
		t.Fatalf("expected %d runs, got %d", maxHistory, len(runs))
	}
	if runs[0].File != fmt.Sprintf("f%d.md", maxHistory+9) {
		t.Errorf("newest = %s", runs[0].File)
	}
}

func TestHistory_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	if _, err := LoadHistory(path); err == nil {
		t.Error("expected error for corrupt history")
	}
}

func TestImport_RecordsHistory(t *testing.T) {
	h, _ := LoadHistory("")
	im := NewImporter(NewDriver(discardLogger()), &memStore{}, nil, discardLogger())
	im.SetHistory(h)

	im.Import(context.Background(), BytesFile("ok.md", []byte("## 1. A\n")), nil)
	im.Import(context.Background(), unreadableFile{}, nil)

	runs := h.Runs()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].File != "broken.md" || runs[0].Error == "" {
		t.Errorf("failed run = %+v", runs[0])
	}
	if runs[1].File != "ok.md" || runs[1].Conversations != 1 || runs[1].Error != "" {
		t.Errorf("ok run = %+v", runs[1])
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}

	got := expandHome("~/test/path")
	want := filepath.Join(home, "test/path")
	if got != want {
		t.Errorf("expandHome(~/test/path) = %q, want %q", got, want)
	}

	got = expandHome("/absolute/path")
	if got != "/absolute/path" {
		t.Errorf("expandHome(/absolute/path) = %q", got)
	}
}
