package svcd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/loykin/svcd/internal/config"
	"github.com/loykin/svcd/internal/control"
	"github.com/loykin/svcd/internal/definition"
	"github.com/loykin/svcd/internal/history"
	"github.com/loykin/svcd/internal/history/factory"
	"github.com/loykin/svcd/internal/metrics"
	"github.com/loykin/svcd/internal/registry"
	"github.com/loykin/svcd/internal/server"
)

// Re-export core types for embedding the supervisor in another program.
// These are aliases so conversions are zero-cost.

type Registry = registry.Registry

type Options = registry.Options

type Status = registry.Status

type Phase = registry.Phase

type Config = config.Config

type Source = definition.Source

type MapSource = definition.MapSource

type ControlServer = control.Server

type ControlOptions = control.Options

type HistoryRecorder = history.Recorder

type HistorySink = history.Sink

var ErrServiceNotFound = registry.ErrServiceNotFound

// New returns a registry resolving definitions through src.
func New(src Source, opts Options) *Registry { return registry.New(src, opts) }

// OpenDefinitions picks a directory or table source for path.
func OpenDefinitions(path string) (Source, error) { return definition.Open(path) }

// ReadAutostart returns the service names listed in the file at path.
func ReadAutostart(path string) ([]string, error) { return definition.ReadAutostart(path) }

// LoadConfig reads configuration the same way the svcd binary does.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	return config.Load(path, flags)
}

// NewControlServer serves the text protocol for reg on the unix socket at path.
func NewControlServer(path string, reg *Registry, opts ControlOptions) *ControlServer {
	return control.NewServer(path, reg, opts)
}

// NewHTTPServer builds the JSON status and metrics endpoint for reg.
func NewHTTPServer(addr, basePath string, reg *Registry) *http.Server {
	return server.NewServer(addr, basePath, reg)
}

// NewHistoryRecorder opens one sink per DSN and records lifecycle events to all of them.
func NewHistoryRecorder(dsns ...string) (*HistoryRecorder, error) {
	sinks := make([]history.Sink, 0, len(dsns))
	for _, dsn := range dsns {
		s, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			for _, opened := range sinks {
				if c, ok := opened.(interface{ Close() error }); ok {
					_ = c.Close()
				}
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return history.NewRecorder(nil, sinks...), nil
}

// RegisterMetrics registers svcd collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() http.Handler { return metrics.Handler() }
