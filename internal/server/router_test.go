package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/loykin/svcd/internal/registry"
)

type memRegistry struct {
	services map[string]registry.Status
}

func (m *memRegistry) Start(name string) error {
	m.services[name] = registry.Status{Name: name, PID: os.Getpid(), Active: true, Phase: registry.PhaseRunning}
	return nil
}

func (m *memRegistry) Stop(name string) (registry.Status, error) {
	st, ok := m.services[name]
	if !ok {
		return registry.Status{}, fmt.Errorf("%w: %s", registry.ErrServiceNotFound, name)
	}
	delete(m.services, name)
	st.PID, st.Active, st.Phase = 0, false, registry.PhaseStopped
	return st, nil
}

func (m *memRegistry) Restart(name string) (registry.Status, error) {
	st, ok := m.services[name]
	if !ok {
		return registry.Status{}, fmt.Errorf("%w: %s", registry.ErrServiceNotFound, name)
	}
	st.Restarts++
	m.services[name] = st
	return st, nil
}

func (m *memRegistry) Status(name string) (registry.Status, error) {
	st, ok := m.services[name]
	if !ok {
		return registry.Status{}, fmt.Errorf("%w: %s", registry.ErrServiceNotFound, name)
	}
	return st, nil
}

func (m *memRegistry) StatusAll() []registry.Status {
	out := make([]registry.Status, 0, len(m.services))
	for _, st := range m.services {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func setupRouter(t *testing.T, base string) (http.Handler, *memRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := &memRegistry{services: make(map[string]registry.Status)}
	return NewRouter(reg, base).Handler(), reg
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatusAllEmpty(t *testing.T) {
	h, _ := setupRouter(t, "/api")
	rec := doReq(t, h, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}
}

func TestStatusUnknown(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/status/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInvalidName(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodPost, "/start/a..b")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartStatusStop(t *testing.T) {
	h, reg := setupRouter(t, "/svc/")

	rec := doReq(t, h, http.MethodPost, "/svc/start/echoer")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := reg.services["echoer"]; !ok {
		t.Fatalf("start did not reach registry")
	}

	rec = doReq(t, h, http.MethodGet, "/svc/status/echoer")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var got serviceResp
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Active || got.PID != os.Getpid() {
		t.Fatalf("unexpected status: %+v", got.Status)
	}
	if got.Usage == nil || got.Usage.PID != int32(os.Getpid()) {
		t.Fatalf("expected usage sample for active service, got %+v", got.Usage)
	}

	rec = doReq(t, h, http.MethodPost, "/svc/restart/echoer")
	if rec.Code != http.StatusOK {
		t.Fatalf("restart: %d", rec.Code)
	}

	rec = doReq(t, h, http.MethodPost, "/svc/stop/echoer")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: %d", rec.Code)
	}
	var stopped registry.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &stopped); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stopped.Active || stopped.PID != 0 || stopped.Restarts != 1 {
		t.Fatalf("unexpected stop status: %+v", stopped)
	}

	rec = doReq(t, h, http.MethodPost, "/svc/stop/echoer")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second stop: expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected default collectors in exposition")
	}
}
