// Package definition resolves service names to argument vectors and reads
// the auto-start list.
package definition

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnavailable is wrapped by every Load failure: unknown service, unreadable
// file or an empty definition.
var ErrUnavailable = errors.New("definition unavailable")

// Source returns the argument vector for a service. argv[0] is the program.
// Implementations are read on every call; callers must not cache results.
type Source interface {
	Load(name string) ([]string, error)
}

// Open picks a DirSource when path is a directory and a TableSource otherwise.
func Open(path string) (Source, error) {
	if path == "" {
		return nil, fmt.Errorf("definitions path is empty")
	}
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// the table may appear later; every Load re-reads it
			return TableSource{Path: path}, nil
		}
		return nil, err
	}
	if fi.IsDir() {
		return DirSource{Dir: path}, nil
	}
	return TableSource{Path: path}, nil
}

// MapSource serves definitions from memory.
type MapSource map[string][]string

func (m MapSource) Load(name string) ([]string, error) {
	argv, ok := m[name]
	if !ok || len(argv) == 0 {
		return nil, unavailable(name, errors.New("no such service"))
	}
	return append([]string(nil), argv...), nil
}

func unavailable(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
}

func isComment(s string) bool { return strings.HasPrefix(s, "#") }
