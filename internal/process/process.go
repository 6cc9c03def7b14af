package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a handle to one running child. It is owned by a single
// supervisor; the pid is exposed for reporting only.
type Process interface {
	PID() int
	Signal(sig os.Signal) error
	Wait() ExitStatus
}

// ExitStatus describes how a child finished.
type ExitStatus struct {
	PID  int
	Code int // -1 when terminated by a signal
	Err  error
}

// Success reports whether the child exited with status zero.
func (s ExitStatus) Success() bool { return s.Err == nil && s.Code == 0 }

func (s ExitStatus) String() string {
	if s.Err != nil {
		return s.Err.Error()
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// Starter spawns a child for a Spec.
type Starter func(Spec) (Process, error)

// Start spawns spec.Program with an empty environment in its own process
// group. Stdout and stderr go to the service log files from spec.Log, or to
// the null device.
func Start(spec Spec) (Process, error) {
	if spec.Program == "" {
		return nil, ErrEmptyCommand
	}
	// #nosec G204
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Env = []string{}
	configureSysProcAttr(cmd)

	var closers []io.Closer
	outW, errW, err := spec.Log.ProcessWriters(spec.Name)
	if err != nil {
		return nil, err
	}
	if outW == nil || errW == nil {
		null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		closers = append(closers, null)
		if outW == nil {
			cmd.Stdout = null
		}
		if errW == nil {
			cmd.Stderr = null
		}
	}
	if outW != nil {
		cmd.Stdout = outW
		closers = append(closers, outW)
	}
	if errW != nil {
		cmd.Stderr = errW
		closers = append(closers, errW)
	}

	if err := cmd.Start(); err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("start %s: %w", spec.Program, err)
	}
	return &execProcess{cmd: cmd, closers: closers, done: make(chan struct{})}, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	closers []io.Closer

	once   sync.Once
	done   chan struct{}
	status ExitStatus
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

// Signal delivers sig to the child's process group. It returns
// os.ErrProcessDone once the child has been reaped.
func (p *execProcess) Signal(sig os.Signal) error {
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	if err := signalGroup(p.cmd.Process.Pid, sig); err == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

// Wait blocks until the child exits. Safe to call more than once.
func (p *execProcess) Wait() ExitStatus {
	p.once.Do(func() {
		err := p.cmd.Wait()
		closeAll(p.closers)
		st := ExitStatus{PID: p.cmd.Process.Pid}
		var ee *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &ee):
			st.Code = ee.ExitCode()
			st.Err = err
		default:
			st.Code = -1
			st.Err = err
		}
		p.status = st
		close(p.done)
	})
	<-p.done
	return p.status
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
