package factory

import (
	"testing"

	"github.com/loykin/svcd/internal/history"
	"github.com/loykin/svcd/internal/history/opensearch"
)

func TestNewSinkFromDSN(t *testing.T) {
	s, err := NewSinkFromDSN(":memory:")
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if _, ok := s.(*history.SQLSink); !ok {
		t.Fatalf("expected *history.SQLSink, got %T", s)
	}
	_ = s.(*history.SQLSink).Close()

	s, err = NewSinkFromDSN("opensearch://localhost:9200/events")
	if err != nil {
		t.Fatalf("opensearch: %v", err)
	}
	if _, ok := s.(*opensearch.Sink); !ok {
		t.Fatalf("expected *opensearch.Sink, got %T", s)
	}

	for _, bad := range []string{"", "   ", "kafka://broker/topic"} {
		if _, err := NewSinkFromDSN(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
