package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventSpawn EventType = "spawn" // a child was started
	EventExit  EventType = "exit"  // a child exited on its own
	EventStop  EventType = "stop"  // an operator stopped the service
	EventFail  EventType = "fail"  // load failure or throttled crash
)

// Record is the service state attached to an event.
type Record struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Phase     string    `json:"phase"`
	Restarts  int       `json:"restarts"`
	StartedAt time.Time `json:"started_at"`
	ExitCode  int       `json:"exit_code"`
	Error     string    `json:"error,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Recorder delivers events to its sinks from a single background goroutine
// so callers never block on a slow sink. Events are dropped when the queue
// is full.
type Recorder struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

// NewRecorder starts a Recorder for sinks.
func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sinks:   sinks,
		timeout: 5 * time.Second,
		logger:  logger,
		ch:      make(chan Event, 256),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues e. It is a no-op on a nil or closed Recorder.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- e:
	default:
		r.logger.Warn("history queue full, dropping event", "type", e.Type, "name", e.Record.Name)
	}
}

// Close flushes queued events and closes sinks implementing io.Closer.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done

	var errs []error
	for _, s := range r.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.ch {
		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			if err := s.Send(ctx, e); err != nil {
				r.logger.Warn("history sink send failed", "type", e.Type, "name", e.Record.Name, "error", err)
			}
			cancel()
		}
	}
}
