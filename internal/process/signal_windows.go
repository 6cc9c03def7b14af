//go:build windows

package process

import (
	"errors"
	"os"
)

func signalGroup(pid int, sig os.Signal) error {
	return errors.New("process groups are not supported")
}

// Alive reports whether pid refers to a live process.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
