package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// File is an upload handed to a parse run.
type File interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// ErrUnsupportedFile marks uploads that are not a Markdown export.
var ErrUnsupportedFile = errors.New("unsupported file")

// acceptedExtensions are the archive formats the importer takes.
var acceptedExtensions = []string{".md", ".markdown", ".txt"}

// CheckFile rejects files that are not Markdown or plain text.
func CheckFile(f File) error {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	for _, a := range acceptedExtensions {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("%w %q: expected a Markdown export (%s)", ErrUnsupportedFile, f.Name(), strings.Join(acceptedExtensions, ", "))
}

type pathFile struct {
	path string
	size int64
}

// OpenPath wraps a local file.
func OpenPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &pathFile{path: path, size: info.Size()}, nil
}

func (f *pathFile) Name() string                 { return filepath.Base(f.path) }
func (f *pathFile) Size() int64                  { return f.size }
func (f *pathFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

type multipartFile struct {
	header *multipart.FileHeader
}

// FromMultipart wraps a form upload.
func FromMultipart(h *multipart.FileHeader) File {
	return &multipartFile{header: h}
}

func (f *multipartFile) Name() string { return f.header.Filename }
func (f *multipartFile) Size() int64  { return f.header.Size }
func (f *multipartFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

type bytesFile struct {
	name string
	data []byte
}

// BytesFile wraps an in-memory archive.
func BytesFile(name string, data []byte) File {
	return &bytesFile{name: name, data: data}
}

func (f *bytesFile) Name() string { return f.name }
func (f *bytesFile) Size() int64  { return int64(len(f.data)) }
func (f *bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}
