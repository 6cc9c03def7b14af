package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/loykin/svcd/internal/process"
)

// fakeProc is an in-memory child. It exits when finish is called or, unless
// ignoreTerm is set, on any signal.
type fakeProc struct {
	pid        int
	ignoreTerm bool

	mu      sync.Mutex
	signals []os.Signal

	once   sync.Once
	done   chan struct{}
	status process.ExitStatus
}

func (f *fakeProc) PID() int { return f.pid }

func (f *fakeProc) Signal(sig os.Signal) error {
	select {
	case <-f.done:
		return os.ErrProcessDone
	default:
	}
	f.mu.Lock()
	f.signals = append(f.signals, sig)
	f.mu.Unlock()
	if f.ignoreTerm && sig != os.Kill {
		return nil
	}
	f.finish(process.ExitStatus{PID: f.pid, Code: -1, Err: errors.New("signal: " + sig.String())})
	return nil
}

func (f *fakeProc) Wait() process.ExitStatus {
	<-f.done
	return f.status
}

func (f *fakeProc) finish(st process.ExitStatus) {
	f.once.Do(func() {
		st.PID = f.pid
		f.status = st
		close(f.done)
	})
}

func (f *fakeProc) exited() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *fakeProc) received() []os.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]os.Signal(nil), f.signals...)
}

// fakeLauncher hands out fakeProcs and remembers them per service.
type fakeLauncher struct {
	mu      sync.Mutex
	nextPID int
	procs   map[string][]*fakeProc

	// exitCode, when set, makes every child exit immediately with it.
	exitCode   *int
	ignoreTerm bool
	failSpawn  bool
	// overlap is set when a child is spawned while a sibling is still alive.
	overlap bool
}

func newLauncher() *fakeLauncher {
	return &fakeLauncher{nextPID: 1000, procs: make(map[string][]*fakeProc)}
}

func (l *fakeLauncher) Start(spec process.Spec) (process.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failSpawn {
		return nil, errors.New("fork failed")
	}
	for _, p := range l.procs[spec.Name] {
		if !p.exited() {
			l.overlap = true
		}
	}
	l.nextPID++
	p := &fakeProc{pid: l.nextPID, ignoreTerm: l.ignoreTerm, done: make(chan struct{})}
	l.procs[spec.Name] = append(l.procs[spec.Name], p)
	if l.exitCode != nil {
		p.finish(process.ExitStatus{Code: *l.exitCode, Err: exitErr(*l.exitCode)})
	}
	return p, nil
}

func (l *fakeLauncher) spawned(name string) []*fakeProc {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProc(nil), l.procs[name]...)
}

func (l *fakeLauncher) count(name string) int { return len(l.spawned(name)) }

func (l *fakeLauncher) last(name string) *fakeProc {
	ps := l.spawned(name)
	if len(ps) == 0 {
		return nil
	}
	return ps[len(ps)-1]
}

func exitErr(code int) error {
	if code == 0 {
		return nil
	}
	return fmt.Errorf("exit status %d", code)
}
