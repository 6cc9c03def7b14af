package process

import (
	"errors"

	"github.com/loykin/svcd/internal/logger"
)

// ErrEmptyCommand is returned when a Spec has no program to run.
var ErrEmptyCommand = errors.New("empty command")

// Spec describes one spawn of a supervised service.
type Spec struct {
	Name    string        `json:"name"`
	Program string        `json:"program"`
	Args    []string      `json:"args"`
	Log     logger.Config `json:"-"`
}

// FromArgv builds a Spec from an argument vector where argv[0] is the program.
func FromArgv(name string, argv []string) (Spec, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Spec{}, ErrEmptyCommand
	}
	return Spec{Name: name, Program: argv[0], Args: append([]string(nil), argv[1:]...)}, nil
}
