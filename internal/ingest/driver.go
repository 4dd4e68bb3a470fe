package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/MikeSquared-Agency/scribe/internal/archive"
)

// ErrWorkerCrashed is returned when the parse worker dies instead of
// reporting a structured error.
var ErrWorkerCrashed = errors.New("worker error")

// ParseError carries the parser's own failure message.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// Progress is what callers of Driver.Parse see for every progress message.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}

// ProgressFunc observes a parse run. It is called on the caller's goroutine.
type ProgressFunc func(Progress)

// DoneStatus is the status of the final progress event of a successful run.
const DoneStatus = "Done!"

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateCompleted
	stateFailed
)

func (s runState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// Driver runs archive parses on isolated workers, one worker per call.
type Driver struct {
	logger *slog.Logger
	parse  parseFunc
	active atomic.Int64
}

func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{logger: logger, parse: archive.ParseReader}
}

// Active returns the number of workers currently alive.
func (d *Driver) Active() int {
	return int(d.active.Load())
}

// Parse parses file on a fresh worker and returns its conversations in
// source order. onProgress may be nil. The worker is released on every
// return path; cancelling ctx terminates it without a partial result.
func (d *Driver) Parse(ctx context.Context, file File, onProgress ProgressFunc) ([]archive.Conversation, error) {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	state := stateIdle
	transition := func(next runState) {
		d.logger.Debug("parse run state", "file", file.Name(), "from", state.String(), "to", next.String())
		state = next
	}

	d.active.Add(1)
	w := startWorker(d.parse, func() { d.active.Add(-1) })
	defer w.terminate()

	transition(stateRunning)
	w.post(request{File: file})

	for {
		select {
		case <-ctx.Done():
			transition(stateFailed)
			return nil, ctx.Err()

		case r := <-w.crash:
			transition(stateFailed)
			d.logger.Error("parse worker crashed", "file", file.Name(), "error", r)
			return nil, fmt.Errorf("%w: %v", ErrWorkerCrashed, r)

		case msg := <-w.out:
			if convs, ended, err := d.handle(file, msg, onProgress, transition); ended {
				return convs, err
			}

		case <-w.done:
			return d.drain(w, file, onProgress, transition)
		}
	}
}

// drain settles a run whose goroutine has already exited. Buffered messages
// are applied in order before falling back to the crash channel.
func (d *Driver) drain(w *worker, file File, onProgress ProgressFunc, transition func(runState)) ([]archive.Conversation, error) {
	for {
		select {
		case msg := <-w.out:
			if convs, ended, err := d.handle(file, msg, onProgress, transition); ended {
				return convs, err
			}
		case r := <-w.crash:
			transition(stateFailed)
			d.logger.Error("parse worker crashed", "file", file.Name(), "error", r)
			return nil, fmt.Errorf("%w: %v", ErrWorkerCrashed, r)
		default:
			transition(stateFailed)
			d.logger.Error("parse worker exited without a result", "file", file.Name())
			return nil, fmt.Errorf("%w: worker exited without a result", ErrWorkerCrashed)
		}
	}
}

// handle applies one worker message and reports whether it ended the run.
func (d *Driver) handle(file File, msg Message, onProgress ProgressFunc, transition func(runState)) ([]archive.Conversation, bool, error) {
	switch msg.Type {
	case MessageProgress:
		onProgress(Progress{Current: msg.Current, Total: 100, Status: msg.Status})
		return nil, false, nil

	case MessageComplete:
		conversations := make([]archive.Conversation, 0, len(msg.Conversations))
		for _, wc := range msg.Conversations {
			c, err := archive.FromWire(wc)
			if err != nil {
				transition(stateFailed)
				return nil, true, fmt.Errorf("decode parse result: %w", err)
			}
			conversations = append(conversations, c)
		}
		onProgress(Progress{Current: 100, Total: 100, Status: DoneStatus})
		transition(stateCompleted)
		return conversations, true, nil

	case MessageError:
		transition(stateFailed)
		return nil, true, &ParseError{Message: msg.Message}
	}

	d.logger.Warn("ignoring unknown worker message", "type", msg.Type, "file", file.Name())
	return nil, false, nil
}
