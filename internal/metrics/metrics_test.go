package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v != lp.GetValue() {
					continue next
				}
			}
			return m.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncSpawn("a")
	IncRestart("a")
	IncExit("a", "dirty")
	IncStop("a")
	IncLoadFailure("b")
	SetRegistered(2)
	IncControlRequest("status", "ok")
	IncDefinitionChange("update")
	SetPhase("a", "running")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"svcd_service_spawns_total":        false,
		"svcd_service_restarts_total":      false,
		"svcd_service_exits_total":         false,
		"svcd_service_stops_total":         false,
		"svcd_service_load_failures_total": false,
		"svcd_service_current_phase":       false,
		"svcd_registry_services":           false,
		"svcd_control_requests_total":      false,
		"svcd_definitions_changes_total":   false,
	}
	for _, mf := range mfs {
		if _, ok := wantNames[mf.GetName()]; ok {
			wantNames[mf.GetName()] = true
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}

	if v, ok := gaugeValue(t, mfs, "svcd_service_current_phase", map[string]string{"name": "a", "phase": "running"}); !ok || v != 1 {
		t.Fatalf("running phase gauge = %v (found=%v)", v, ok)
	}
	if v, ok := gaugeValue(t, mfs, "svcd_service_current_phase", map[string]string{"name": "a", "phase": "failed"}); !ok || v != 0 {
		t.Fatalf("failed phase gauge = %v (found=%v)", v, ok)
	}

	ForgetService("a")
	mfs, _ = reg.Gather()
	if _, ok := gaugeValue(t, mfs, "svcd_service_current_phase", map[string]string{"name": "a"}); ok {
		t.Fatalf("phase series for a should be gone")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncSpawn("x")

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "svcd_service_spawns_total") {
		t.Fatalf("unexpected response %d: %.200s", resp.StatusCode, body)
	}
}

func TestSample_Self(t *testing.T) {
	m, err := Sample(os.Getpid())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if m.PID != int32(os.Getpid()) || m.MemoryRSS == 0 {
		t.Fatalf("unexpected sample: %+v", m)
	}
	if _, err := Sample(0); err == nil {
		t.Fatalf("expected error for pid 0")
	}
}
