package config

const (
	DefaultSocket      = "/data/daemon/daemon.sock"
	DefaultDefinitions = "/data/daemon/config"
	DefaultAutostart   = "/data/daemon/autostart"
	DefaultDaemonLog   = "/data/daemon/daemon.log"
	DefaultPIDFile     = "/data/daemon/daemon.pid"
)
