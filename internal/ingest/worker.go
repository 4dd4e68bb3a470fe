package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
)

// MessageType tags a Message sent by the parse worker.
type MessageType string

const (
	MessageProgress MessageType = "progress"
	MessageComplete MessageType = "complete"
	MessageError    MessageType = "error"
)

// Message is one entry in a worker's output stream: zero or more progress
// messages followed by exactly one complete or error message.
type Message struct {
	Type          MessageType                `json:"type"`
	Current       int                        `json:"current"`
	Status        string                     `json:"status,omitempty"`
	Conversations []archive.WireConversation `json:"conversations,omitempty"`
	Message       string                     `json:"message,omitempty"`
}

// Terminal reports whether m ends the stream.
func (m Message) Terminal() bool {
	return m.Type == MessageComplete || m.Type == MessageError
}

type request struct {
	File File
}

type parseFunc func(ctx context.Context, r io.Reader, size int64, opts archive.ParseOptions) ([]archive.Conversation, error)

// worker owns one parse run on its own goroutine. The driver talks to it only
// through channels.
type worker struct {
	in    chan request
	out   chan Message
	crash chan error
	done  chan struct{}

	cancel    context.CancelFunc
	parse     parseFunc
	onRelease func()
	once      sync.Once
}

func startWorker(parse parseFunc, onRelease func()) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		in:        make(chan request, 1),
		out:       make(chan Message, 16),
		crash:     make(chan error, 1),
		done:      make(chan struct{}),
		cancel:    cancel,
		parse:     parse,
		onRelease: onRelease,
	}
	go w.run(ctx)
	return w
}

func (w *worker) post(req request) {
	w.in <- req
}

// terminate stops the run and waits for the goroutine to exit. Safe to call
// more than once.
func (w *worker) terminate() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
		if w.onRelease != nil {
			w.onRelease()
		}
	})
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.crash <- fmt.Errorf("%v", r)
		}
	}()

	select {
	case <-ctx.Done():
		return
	case req := <-w.in:
		w.handle(ctx, req)
	}
}

func (w *worker) handle(ctx context.Context, req request) {
	w.emit(ctx, Message{
		Type:   MessageProgress,
		Status: fmt.Sprintf("Starting parse of %d MB Markdown...", archive.MegaBytes(req.File.Size())),
	})

	rc, err := req.File.Open()
	if err != nil {
		w.emit(ctx, Message{Type: MessageError, Message: fmt.Sprintf("open %s: %v", req.File.Name(), err)})
		return
	}
	defer rc.Close()

	conversations, err := w.parse(ctx, rc, req.File.Size(), archive.ParseOptions{
		Progress: func(percent, _ int, status string) {
			w.emit(ctx, Message{Type: MessageProgress, Current: percent, Status: status})
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.emit(ctx, Message{Type: MessageError, Message: err.Error()})
		return
	}

	wire := make([]archive.WireConversation, len(conversations))
	for i, c := range conversations {
		wire[i] = archive.ToWire(c)
	}
	w.emit(ctx, Message{Type: MessageComplete, Current: 100, Conversations: wire})
}

// emit blocks until the driver takes m or the run is terminated.
func (w *worker) emit(ctx context.Context, m Message) {
	select {
	case w.out <- m:
	case <-ctx.Done():
	}
}
