// Package control implements the daemon's local control socket: one
// "<verb>/<argument>" request per connection, answered with plain text.
package control

import (
	"errors"
	"strings"

	"github.com/loykin/svcd/internal/registry"
)

// Verb is the part of a request before the first '/'.
type Verb string

const (
	VerbDaemon  Verb = "daemon"
	VerbStatus  Verb = "status"
	VerbStart   Verb = "start"
	VerbStop    Verb = "stop"
	VerbRestart Verb = "restart"
)

// Arguments accepted with VerbDaemon.
const (
	DaemonStop   = "stop"
	DaemonStatus = "status"
)

// InvalidParameter is the response to any request that does not parse.
const InvalidParameter = "Invalid parameter"

var (
	// ErrInvalidCommand is returned by ParseCommand for malformed requests.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrShutdownRequested is returned by Dispatch for daemon/stop; it only
	// unwinds the accept loop.
	ErrShutdownRequested = errors.New("shutdown requested")
)

// Command is a parsed request.
type Command struct {
	Verb Verb
	Arg  string
}

func (c Command) String() string { return string(c.Verb) + "/" + c.Arg }

// ParseCommand parses "<verb>/<argument>". Surrounding whitespace is ignored.
func ParseCommand(payload string) (Command, error) {
	verb, arg, ok := strings.Cut(strings.TrimSpace(payload), "/")
	if !ok {
		return Command{}, ErrInvalidCommand
	}
	c := Command{Verb: Verb(verb), Arg: arg}
	switch c.Verb {
	case VerbDaemon:
		if arg != DaemonStop && arg != DaemonStatus {
			return Command{}, ErrInvalidCommand
		}
	case VerbStatus, VerbStart, VerbStop, VerbRestart:
		if !validServiceName(arg) {
			return Command{}, ErrInvalidCommand
		}
	default:
		return Command{}, ErrInvalidCommand
	}
	return c, nil
}

func validServiceName(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/ \t\r\n")
}

// Registry is the subset of registry.Registry the control server drives.
type Registry interface {
	Start(name string) error
	Stop(name string) (registry.Status, error)
	Restart(name string) (registry.Status, error)
	Status(name string) (registry.Status, error)
	StatusAll() []registry.Status
}

// Dispatch runs c against reg and returns the response text. For
// daemon/stop the response is the final status listing and the error is
// ErrShutdownRequested.
func Dispatch(reg Registry, c Command) (string, error) {
	switch c.Verb {
	case VerbDaemon:
		lines := FormatAll(reg.StatusAll())
		if c.Arg == DaemonStop {
			return lines, ErrShutdownRequested
		}
		return lines, nil
	case VerbStatus:
		return statusOrError(reg.Status(c.Arg))
	case VerbStart:
		if err := reg.Start(c.Arg); err != nil {
			return err.Error(), err
		}
		return statusOrError(reg.Status(c.Arg))
	case VerbStop:
		return statusOrError(reg.Stop(c.Arg))
	case VerbRestart:
		return statusOrError(reg.Restart(c.Arg))
	}
	return InvalidParameter, ErrInvalidCommand
}

// FormatAll renders one status line per service, newline separated.
func FormatAll(all []registry.Status) string {
	lines := make([]string, len(all))
	for i, st := range all {
		lines[i] = st.String()
	}
	return strings.Join(lines, "\n")
}

func statusOrError(st registry.Status, err error) (string, error) {
	if err != nil {
		return err.Error(), err
	}
	return st.String(), nil
}
