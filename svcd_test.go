package svcd

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func TestFacadeStartStatusStop(t *testing.T) {
	requireUnix(t)
	reg := New(MapSource{"napper": {"/bin/sleep", "5"}}, Options{StopTimeout: time.Second})

	if _, err := reg.Status("napper"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected not found before start, got %v", err)
	}
	if err := reg.Start("napper"); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		st, err := reg.Status("napper")
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Active && st.PID > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("service never became active: %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}
	st, err := reg.Stop("napper")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if st.Active || st.PID != 0 || st.String() != "napper 0 []" {
		t.Fatalf("unexpected stop status: %q", st.String())
	}
	if !reg.Wait(3 * time.Second) {
		t.Fatalf("guardian did not retire")
	}
}

func TestHistoryRecorderFromDSN(t *testing.T) {
	rec, err := NewHistoryRecorder(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := NewHistoryRecorder(filepath.Join(t.TempDir(), "ok.db"), "kafka://broker:9092/events"); err == nil {
		t.Fatalf("expected error for unsupported DSN scheme")
	}
}

func TestRegisterMetrics(t *testing.T) {
	r := prometheus.NewRegistry()
	if err := RegisterMetrics(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	if MetricsHandler() == nil {
		t.Fatalf("nil metrics handler")
	}
}
