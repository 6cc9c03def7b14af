package registry

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/svcd/internal/history"
	"github.com/loykin/svcd/internal/metrics"
	"github.com/loykin/svcd/internal/process"
)

// guard supervises e until it is stopped, exits cleanly or is throttled.
func (r *Registry) guard(e *entry, prev *entry) {
	defer r.guardians.Done()
	defer close(e.done)

	log := r.logger.With("service", e.name)
	if prev != nil {
		r.awaitRetired(prev, log)
	}

	spec, err := r.load(e.name)
	if err != nil {
		r.loadFailed(e, err, log)
		return
	}
	spec.Log = r.opts.Log

	for {
		e.mu.Lock()
		if e.stopRequested {
			e.mu.Unlock()
			return
		}
		p, err := r.opts.Starter(spec)
		started := time.Now()
		if err == nil {
			e.proc = p
			e.phase = PhaseRunning
			e.startedAt = started
		}
		snap := e.snapshotLocked()
		e.mu.Unlock()

		var st process.ExitStatus
		if err != nil {
			log.Error("spawn failed", "error", err)
			metrics.IncExit(e.name, "spawn_error")
			st = process.ExitStatus{Code: -1, Err: err}
		} else {
			log.Info("service spawned", "pid", snap.PID, "restarts", snap.Restarts)
			metrics.IncSpawn(e.name)
			r.setPhase(e, PhaseRunning)
			r.record(history.EventSpawn, snap)
			st = p.Wait()
		}

		uptime := time.Duration(0)
		if err == nil {
			uptime = time.Since(started)
		}
		if !r.afterExit(e, st, uptime, log) {
			return
		}
		metrics.IncRestart(e.name)
	}
}

func (r *Registry) load(name string) (process.Spec, error) {
	argv, err := r.src.Load(name)
	if err != nil {
		return process.Spec{}, err
	}
	spec, err := process.FromArgv(name, argv)
	if err != nil {
		return process.Spec{}, fmt.Errorf("load %s: %w", name, err)
	}
	return spec, nil
}

func (r *Registry) loadFailed(e *entry, err error, log *slog.Logger) {
	e.mu.Lock()
	stopped := e.stopRequested
	if !stopped {
		e.stopRequested = true
		e.phase = PhaseFailed
		e.err = err.Error()
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	if stopped {
		return
	}
	log.Error("cannot load service definition", "error", err)
	metrics.IncLoadFailure(e.name)
	r.setPhase(e, PhaseFailed)
	r.record(history.EventFail, snap)
}

// afterExit applies the restart policy to a finished child and reports
// whether the guardian should spawn again.
func (r *Registry) afterExit(e *entry, st process.ExitStatus, uptime time.Duration, log *slog.Logger) bool {
	var (
		respawn bool
		result  string
		event   = history.EventExit
	)
	e.mu.Lock()
	e.proc = nil
	e.exitCode = st.Code
	switch {
	case e.stopRequested:
		e.phase = PhaseStopped
		result = "stopped"
	case st.Success():
		e.stopRequested = true
		e.phase = PhaseExited
		e.err = ""
		result = "clean"
	case uptime < r.opts.MinUptime:
		e.stopRequested = true
		e.phase = PhaseFailed
		e.err = fmt.Sprintf("%s after %s, not restarting", st, uptime.Round(time.Millisecond))
		result = "throttled"
		event = history.EventFail
	default:
		e.restarts++
		e.err = st.String()
		result = "dirty"
		respawn = true
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	metrics.IncExit(e.name, result)
	if !respawn {
		r.setPhase(e, snap.Phase)
	}
	if result != "stopped" {
		r.record(event, snap)
	}
	switch result {
	case "throttled":
		log.Warn("service failed too quickly", "pid", st.PID, "uptime", uptime, "status", st.String())
	case "dirty":
		log.Warn("service exited, restarting", "pid", st.PID, "uptime", uptime, "status", st.String())
	default:
		log.Info("service exited", "pid", st.PID, "result", result)
	}
	return respawn
}

// awaitRetired blocks until the guardian of prev has finished, killing its
// child if SIGTERM was not enough within StopTimeout.
func (r *Registry) awaitRetired(prev *entry, log *slog.Logger) {
	select {
	case <-prev.done:
		return
	case <-time.After(r.opts.StopTimeout):
	}
	prev.mu.Lock()
	p := prev.proc
	if p != nil {
		log.Warn("previous instance ignored SIGTERM, killing", "pid", p.PID())
		_ = p.Signal(os.Kill)
	}
	prev.mu.Unlock()
	<-prev.done
}
