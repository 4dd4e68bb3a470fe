//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	t.Cleanup(func() {
		s.ClearConversations(context.Background())
		s.Close()
	})
	return s
}

func TestIntegration_SaveAndLoadConversations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	gizmo := "g-123"
	created := time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC)
	in := []archive.Conversation{
		{ID: "b", Title: "Second in file", CreateTime: created, Teacher: archive.TeacherOsho, MessageCount: 4, Markdown: "## 1. Second in file\n"},
		{ID: "a", Title: "Custom", CreateTime: created.Add(time.Hour), GizmoID: &gizmo, IsLester: true, Teacher: archive.TeacherLester, MessageCount: 2, Markdown: "## 2. Custom\n"},
	}

	if err := s.SaveConversations(ctx, in); err != nil {
		t.Fatalf("SaveConversations failed: %v", err)
	}

	out, err := s.LoadConversations(ctx)
	if err != nil {
		t.Fatalf("LoadConversations failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(out))
	}
	if out[0].ID != "b" || out[1].ID != "a" {
		t.Errorf("order = %s, %s", out[0].ID, out[1].ID)
	}
	if !out[0].CreateTime.Equal(created) {
		t.Errorf("create time = %v", out[0].CreateTime)
	}
	if out[1].GizmoID == nil || *out[1].GizmoID != gizmo {
		t.Errorf("gizmo id = %v", out[1].GizmoID)
	}
	if out[0].GizmoID != nil {
		t.Errorf("expected nil gizmo id, got %q", *out[0].GizmoID)
	}

	n, err := s.CountConversations(ctx)
	if err != nil || n != 2 {
		t.Errorf("count = %d, err %v", n, err)
	}
}

func TestIntegration_SaveReplacesArchive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := []archive.Conversation{{ID: "old", Title: "Old", CreateTime: time.Now(), Markdown: "x"}}
	second := []archive.Conversation{{ID: "new", Title: "New", CreateTime: time.Now(), Markdown: "y"}}

	if err := s.SaveConversations(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := s.SaveConversations(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	if _, err := s.GetConversation(ctx, "old"); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("expected ErrNotFound for replaced conversation, got %v", err)
	}
	c, err := s.GetConversation(ctx, "new")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if c.Title != "New" || c.Teacher != archive.TeacherNone {
		t.Errorf("conversation = %+v", c)
	}
}

func TestIntegration_ClearConversations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SaveConversations(ctx, []archive.Conversation{{ID: "x", Title: "X", CreateTime: time.Now()}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.ClearConversations(ctx); err != nil {
		t.Fatalf("ClearConversations failed: %v", err)
	}
	n, err := s.CountConversations(ctx)
	if err != nil || n != 0 {
		t.Errorf("count after clear = %d, err %v", n, err)
	}
}
