// Package registry owns the table of supervised services and the guardian
// goroutine that keeps each one running.
package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/loykin/svcd/internal/definition"
	"github.com/loykin/svcd/internal/history"
	"github.com/loykin/svcd/internal/logger"
	"github.com/loykin/svcd/internal/metrics"
	"github.com/loykin/svcd/internal/process"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultMinUptime   = time.Second
	DefaultStopTimeout = 5 * time.Second
)

// ErrInvalidName is returned by Start for an empty service name.
var ErrInvalidName = errors.New("invalid service name")

// Options tune a Registry.
type Options struct {
	// MinUptime is how long a child must run before a failing exit is
	// answered with a respawn. Faster failures mark the service failed.
	MinUptime time.Duration
	// StopTimeout bounds how long a replacement waits for its predecessor
	// to exit after SIGTERM before sending SIGKILL.
	StopTimeout time.Duration
	Starter     process.Starter
	Log         logger.Config // per-service stdout/stderr files
	Logger      *slog.Logger
	History     *history.Recorder
}

// Registry maps service names to their runtime state. All structural
// changes happen under mu; per-service fields are guarded by entry.mu.
type Registry struct {
	src    definition.Source
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	guardians sync.WaitGroup
}

// New creates a Registry resolving definitions through src.
func New(src definition.Source, opts Options) *Registry {
	if opts.MinUptime <= 0 {
		opts.MinUptime = DefaultMinUptime
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Starter == nil {
		opts.Starter = process.Start
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		src:     src,
		opts:    opts,
		logger:  opts.Logger,
		entries: make(map[string]*entry),
	}
}

// Start registers name and launches its guardian. A previous instance is
// removed and told to stop; the new guardian does not spawn until the old
// one has retired. Load and spawn problems surface through Status.
func (r *Registry) Start(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	e := newEntry(name)

	r.mu.Lock()
	prev := r.entries[name]
	r.entries[name] = e
	n := len(r.entries)
	r.mu.Unlock()

	if prev != nil {
		r.requestStop(prev)
		r.logger.Info("replacing service instance", "service", name)
	}
	metrics.SetRegistered(n)
	metrics.SetPhase(name, string(PhaseLoading))

	r.guardians.Add(1)
	go r.guard(e, prev)
	return nil
}

// Stop removes name and signals its child. It does not wait for the child
// to exit.
func (r *Registry) Stop(name string) (Status, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if ok {
		delete(r.entries, name)
	}
	n := len(r.entries)
	r.mu.Unlock()
	if !ok {
		return Status{}, notFound(name)
	}

	st := r.requestStop(e)
	metrics.SetRegistered(n)
	metrics.IncStop(name)
	metrics.ForgetService(name)
	r.record(history.EventStop, st)
	r.logger.Info("service stopped", "service", name)
	return st, nil
}

// Restart is Start for a name that must already be registered.
func (r *Registry) Restart(name string) (Status, error) {
	r.mu.Lock()
	_, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return Status{}, notFound(name)
	}
	if err := r.Start(name); err != nil {
		return Status{}, err
	}
	return r.Status(name)
}

// Status reports the state of one service.
func (r *Registry) Status(name string) (Status, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return Status{}, notFound(name)
	}
	return e.snapshot(), nil
}

// StatusAll reports every registered service, sorted by name.
func (r *Registry) StatusAll() []Status {
	r.mu.Lock()
	es := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		es = append(es, e)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(es))
	for _, e := range es {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StopAll stops every registered service.
func (r *Registry) StopAll() []Status {
	var out []Status
	for _, st := range r.StatusAll() {
		if s, err := r.Stop(st.Name); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// Wait blocks until every guardian has retired or timeout elapses. It
// reports whether all guardians finished.
func (r *Registry) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		r.guardians.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// requestStop marks e stopped and delivers SIGTERM to its child, if any.
// The signal is sent under the entry lock so it cannot race a respawn.
func (r *Registry) requestStop(e *entry) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopRequested = true
	e.phase = PhaseStopped
	if e.proc != nil {
		if err := e.proc.Signal(syscall.SIGTERM); err != nil {
			r.logger.Debug("stop signal not delivered", "service", e.name, "error", err)
		}
	}
	st := e.snapshotLocked()
	st.PID = 0
	return st
}

// current reports whether e is still the registered entry for its name.
func (r *Registry) current(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[e.name] == e
}

func (r *Registry) setPhase(e *entry, p Phase) {
	if r.current(e) {
		metrics.SetPhase(e.name, string(p))
	}
}

func (r *Registry) record(t history.EventType, st Status) {
	r.opts.History.Record(history.Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Record: history.Record{
			Name:      st.Name,
			PID:       st.PID,
			Phase:     string(st.Phase),
			Restarts:  st.Restarts,
			StartedAt: st.StartedAt,
			ExitCode:  st.ExitCode,
			Error:     st.Error,
		},
	})
}
