package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/svcd/internal/history"
)

func TestSink_PostsEventJSON(t *testing.T) {
	var gotPath string
	var got history.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := New(srv.URL+"/", "svc-history")
	e := history.Event{Type: history.EventFail, OccurredAt: time.Now().UTC(), Record: history.Record{Name: "x", Error: "load failed"}}
	if err := s.Send(context.Background(), e); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/svc-history/_doc" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if got.Type != history.EventFail || got.Record.Name != "x" || got.Record.Error != "load failed" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	if err := New(srv.URL, "i").Send(context.Background(), history.Event{}); err == nil {
		t.Fatalf("expected error on 400")
	}
}
