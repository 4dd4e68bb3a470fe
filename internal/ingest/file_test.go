package ingest

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckFile(t *testing.T) {
	for _, name := range []string{"export.md", "EXPORT.MD", "notes.markdown", "dump.txt"} {
		if err := CheckFile(BytesFile(name, nil)); err != nil {
			t.Errorf("CheckFile(%q) = %v", name, err)
		}
	}
	for _, name := range []string{"export.json", "archive.zip", "noext"} {
		if err := CheckFile(BytesFile(name, nil)); err == nil {
			t.Errorf("CheckFile(%q) accepted", name)
		}
	}
}

func TestOpenPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.md")
	if err := os.WriteFile(path, []byte("## 1. A\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if f.Name() != "export.md" || f.Size() != 8 {
		t.Errorf("name = %q, size = %d", f.Name(), f.Size())
	}

	rc, err := f.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "## 1. A\n" {
		t.Errorf("content = %q", data)
	}

	if _, err := OpenPath(dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := OpenPath(filepath.Join(dir, "missing.md")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromMultipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "upload.md")
	part.Write([]byte("## 1. Uploaded\n"))
	mw.Close()

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse form: %v", err)
	}

	f := FromMultipart(req.MultipartForm.File["file"][0])
	if f.Name() != "upload.md" {
		t.Errorf("name = %q", f.Name())
	}
	rc, err := f.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "## 1. Uploaded\n" {
		t.Errorf("content = %q", data)
	}
}
