package registry

import (
	"errors"
	"fmt"
	"time"
)

// ErrServiceNotFound is returned for names that are not registered.
var ErrServiceNotFound = errors.New("service not found")

// Phase is a reporting label for where a service is in its lifecycle.
type Phase string

const (
	PhaseLoading Phase = "loading" // guardian resolving the definition or waiting for its predecessor
	PhaseRunning Phase = "running"
	PhaseExited  Phase = "exited" // clean exit, not restarted
	PhaseFailed  Phase = "failed" // load failure or crash inside the min-uptime window
	PhaseStopped Phase = "stopped"
)

// Status is a point-in-time view of one registered service.
type Status struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Active    bool      `json:"active"`
	Phase     Phase     `json:"phase"`
	Restarts  int       `json:"restarts"`
	StartedAt time.Time `json:"started_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
	Error     string    `json:"error,omitempty"`
}

// String renders the control protocol line "name pid [flag]" where flag is
// "*" for an active service and empty otherwise.
func (s Status) String() string {
	flag := ""
	if s.Active {
		flag = "*"
	}
	return fmt.Sprintf("%s %d [%s]", s.Name, s.PID, flag)
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
}
