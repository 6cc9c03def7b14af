//go:build !linux && !android

package config

import (
	"os"
	"path/filepath"
)

var (
	DefaultSocket      = filepath.Join(os.TempDir(), "daemon.sock")
	DefaultDefinitions = filepath.Join(os.TempDir(), "config")
	DefaultAutostart   = filepath.Join(os.TempDir(), "autostart")
	DefaultDaemonLog   = filepath.Join(os.TempDir(), "daemon.log")
	DefaultPIDFile     = filepath.Join(os.TempDir(), "daemon.pid")
)
