package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/loykin/svcd/internal/logger"
	tlsx "github.com/loykin/svcd/internal/tls"
)

// EnvPrefix is prepended to environment overrides, e.g. SVCD_SOCKET or
// SVCD_RESTART_MIN_UPTIME.
const EnvPrefix = "SVCD"

// Config is the daemon configuration. Sources in increasing precedence:
// built-in defaults, the config file, SVCD_* environment, command-line flags.
type Config struct {
	Socket             string        `toml:"socket" mapstructure:"socket"`
	Definitions        string        `toml:"definitions" mapstructure:"definitions"`
	Autostart          string        `toml:"autostart" mapstructure:"autostart"`
	PIDFile            string        `toml:"pidfile" mapstructure:"pidfile"`
	LockFile           string        `toml:"lock_file" mapstructure:"lock_file"`
	StopServicesOnExit bool          `toml:"stop_services_on_exit" mapstructure:"stop_services_on_exit"`
	WatchDefinitions   bool          `toml:"watch_definitions" mapstructure:"watch_definitions"`
	Restart            RestartConfig `toml:"restart" mapstructure:"restart"`
	Control            ControlConfig `toml:"control" mapstructure:"control"`
	Log                logger.Config `toml:"log" mapstructure:"log"`
	HTTP               HTTPConfig    `toml:"http" mapstructure:"http"`
	History            HistoryConfig `toml:"history" mapstructure:"history"`
}

type RestartConfig struct {
	MinUptime   time.Duration `toml:"min_uptime" mapstructure:"min_uptime"`
	StopTimeout time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
}

type ControlConfig struct {
	ReadTimeout time.Duration `toml:"read_timeout" mapstructure:"read_timeout"`
}

// HTTPConfig enables the read-only status and metrics endpoint when Listen
// is set.
type HTTPConfig struct {
	Listen   string      `toml:"listen" mapstructure:"listen"`
	BasePath string      `toml:"base_path" mapstructure:"base_path"`
	TLS      tlsx.Config `toml:"tls" mapstructure:"tls"`
}

// HistoryConfig lists sink DSNs for lifecycle events.
type HistoryConfig struct {
	DSN []string `toml:"dsn" mapstructure:"dsn"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"socket":      "socket",
	"definitions": "definitions",
	"autostart":   "autostart",
	"pidfile":     "pidfile",
	"log-level":   "log.slog.level",
	"log-format":  "log.slog.format",
	"log-file":    "log.file.daemon_path",
	"http-listen": "http.listen",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("socket", DefaultSocket)
	v.SetDefault("definitions", DefaultDefinitions)
	v.SetDefault("autostart", DefaultAutostart)
	v.SetDefault("pidfile", DefaultPIDFile)
	v.SetDefault("lock_file", "")
	v.SetDefault("stop_services_on_exit", false)
	v.SetDefault("watch_definitions", false)
	v.SetDefault("restart.min_uptime", time.Second)
	v.SetDefault("restart.stop_timeout", 5*time.Second)
	v.SetDefault("control.read_timeout", 10*time.Second)
	v.SetDefault("log.slog.level", "info")
	v.SetDefault("log.slog.format", "text")
	v.SetDefault("log.slog.color", false)
	v.SetDefault("log.slog.timestamps", true)
	v.SetDefault("log.slog.source", false)
	v.SetDefault("log.file.daemon_path", DefaultDaemonLog)
	v.SetDefault("log.file.service_dir", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("http.listen", "")
	v.SetDefault("http.base_path", "")
	v.SetDefault("http.tls.enabled", false)
	v.SetDefault("http.tls.cert_file", "")
	v.SetDefault("http.tls.key_file", "")
	v.SetDefault("http.tls.dir", "")
	v.SetDefault("http.tls.auto_generate", false)
	v.SetDefault("http.tls.min_version", "")
	v.SetDefault("history.dsn", []string{})
}

// Load builds the configuration from path (optional) and flags (optional).
// The file format follows its extension; extensionless files are read as TOML.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.LockFile == "" && c.Socket != "" {
		c.LockFile = c.Socket + ".lock"
	}
	var dsns []string
	for _, d := range c.History.DSN {
		if d = strings.TrimSpace(d); d != "" {
			dsns = append(dsns, d)
		}
	}
	c.History.DSN = dsns
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Socket == "":
		return errors.New("socket path must not be empty")
	case c.Definitions == "":
		return errors.New("definitions path must not be empty")
	case c.Restart.MinUptime <= 0:
		return fmt.Errorf("restart.min_uptime must be positive, got %s", c.Restart.MinUptime)
	case c.Restart.StopTimeout <= 0:
		return fmt.Errorf("restart.stop_timeout must be positive, got %s", c.Restart.StopTimeout)
	case c.Control.ReadTimeout <= 0:
		return fmt.Errorf("control.read_timeout must be positive, got %s", c.Control.ReadTimeout)
	}
	return nil
}
