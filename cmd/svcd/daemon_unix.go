//go:build !windows

package main

import (
	"os/exec"
	"strconv"
	"syscall"

	"github.com/google/renameio/v2"
)

// configureDaemonAttrs detaches the child from the controlling terminal.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session
	}
}

// writePIDFile replaces the pid file atomically.
func writePIDFile(path string, pid int) error {
	return renameio.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}
