package registry

import (
	"sync"
	"time"

	"github.com/loykin/svcd/internal/process"
)

// entry is the runtime state of one registered service. Only its guardian
// sets proc; Stop only sets stopRequested and signals proc.
type entry struct {
	name string

	mu            sync.Mutex
	proc          process.Process
	stopRequested bool
	phase         Phase
	restarts      int
	startedAt     time.Time
	exitCode      int
	err           string

	done chan struct{} // closed when the guardian retires
}

func newEntry(name string) *entry {
	return &entry{name: name, phase: PhaseLoading, done: make(chan struct{})}
}

func (e *entry) snapshot() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *entry) snapshotLocked() Status {
	st := Status{
		Name:      e.name,
		Active:    !e.stopRequested,
		Phase:     e.phase,
		Restarts:  e.restarts,
		StartedAt: e.startedAt,
		ExitCode:  e.exitCode,
		Error:     e.err,
	}
	if e.proc != nil {
		st.PID = e.proc.PID()
	}
	return st
}
