//go:build linux && !android

package config

const (
	DefaultSocket      = "/tmp/daemon.sock"
	DefaultDefinitions = "/tmp/config"
	DefaultAutostart   = "/tmp/autostart"
	DefaultDaemonLog   = "/tmp/daemon.log"
	DefaultPIDFile     = "/tmp/daemon.pid"
)
