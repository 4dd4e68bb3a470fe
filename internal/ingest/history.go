package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxHistory bounds the number of runs kept on disk.
const maxHistory = 50

// Run is one recorded import attempt.
type Run struct {
	File          string    `json:"file"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Conversations int       `json:"conversations"`
	Error         string    `json:"error,omitempty"`
}

// History is a JSON file of recent import runs, newest first. A History
// with an empty path keeps runs in memory only.
type History struct {
	mu   sync.Mutex
	runs []Run
	path string
}

// LoadHistory reads the history file at path, or starts an empty one.
func LoadHistory(path string) (*History, error) {
	h := &History{path: expandHome(path)}
	if h.path == "" {
		return h, nil
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	if err := json.Unmarshal(data, &h.runs); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return h, nil
}

// Record prepends r and persists the history.
func (h *History) Record(r Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs = append([]Run{r}, h.runs...)
	if len(h.runs) > maxHistory {
		h.runs = h.runs[:maxHistory]
	}
	return h.save()
}

// Runs returns a copy of the recorded runs, newest first.
func (h *History) Runs() []Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Run(nil), h.runs...)
}

// Last returns the most recent run, if any.
func (h *History) Last() (Run, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.runs) == 0 {
		return Run{}, false
	}
	return h.runs[0], true
}

func (h *History) save() error {
	if h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(h.runs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return os.WriteFile(h.path, data, 0o644)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
