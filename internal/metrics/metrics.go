package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcd",
			Subsystem: "service",
			Name:      "spawns_total",
			Help:      "Number of successful child spawns.",
		}, []string{"name"},
	)
	serviceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcd",
			Subsystem: "service",
			Name:      "restarts_total",
			Help:      "Number of automatic respawns after a dirty exit.",
		}, []string{"name"},
	)
	serviceExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcd",
			Subsystem: "service",
			Name:      "exits_total",
			Help:      "Number of child exits by result (clean, dirty, stopped, throttled, spawn_error).",
		}, []string{"name", "result"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcd",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of operator stops.",
		}, []string{"name"},
	)
	loadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcd",
			Subsystem: "service",
			Name:      "load_failures_total",
			Help:      "Number of definition load failures.",
		}, []string{"name"},
	)
	currentPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "svcd",
			Subsystem: "service",
			Name:      "current_phase",
			Help:      "Current phase of each registered service (1 = current phase).",
		}, []string{"name", "phase"},
	)
	registered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "svcd",
			Subsystem: "registry",
			Name:      "services",
			Help:      "Number of services currently registered.",
		},
	)
	controlRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcd",
			Subsystem: "control",
			Name:      "requests_total",
			Help:      "Control socket requests by verb and result.",
		}, []string{"verb", "result"},
	)
	definitionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svcd",
			Subsystem: "definitions",
			Name:      "changes_total",
			Help:      "Changes observed on the definitions path.",
		}, []string{"op"},
	)
)

// Phases exported on the current_phase gauge.
var phases = []string{"loading", "running", "exited", "failed", "stopped"}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceStarts, serviceRestarts, serviceExits, serviceStops, loadFailures, currentPhase, registered, controlRequests, definitionChanges}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register succeeds.

func IncSpawn(name string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(name).Inc()
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		serviceRestarts.WithLabelValues(name).Inc()
	}
}

func IncExit(name, result string) {
	if regOK.Load() {
		serviceExits.WithLabelValues(name, result).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(name).Inc()
	}
}

func IncLoadFailure(name string) {
	if regOK.Load() {
		loadFailures.WithLabelValues(name).Inc()
	}
}

// SetPhase marks phase as current for name and clears the others.
func SetPhase(name, phase string) {
	if !regOK.Load() {
		return
	}
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		currentPhase.WithLabelValues(name, p).Set(v)
	}
}

// ForgetService drops the phase series of a removed service.
func ForgetService(name string) {
	if regOK.Load() {
		currentPhase.DeletePartialMatch(prometheus.Labels{"name": name})
	}
}

func SetRegistered(n int) {
	if regOK.Load() {
		registered.Set(float64(n))
	}
}

func IncControlRequest(verb, result string) {
	if regOK.Load() {
		controlRequests.WithLabelValues(verb, result).Inc()
	}
}

func IncDefinitionChange(op string) {
	if regOK.Load() {
		definitionChanges.WithLabelValues(op).Inc()
	}
}
