package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/loykin/svcd/pkg/client"
)

func TestRootRejectsTooManyArgs(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"start", "web", "extra"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	if !errors.Is(err, client.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRootFlags(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"config", "detach", "timeout", "socket", "definitions", "autostart", "pidfile", "log-level", "log-format", "log-file", "http-listen"} {
		if root.Flags().Lookup(name) == nil {
			t.Fatalf("missing flag --%s", name)
		}
	}
}

func TestDetachArgs(t *testing.T) {
	got := detachArgs([]string{"--config", "/etc/svcd.toml", "--detach", "--detach=true", "--socket=/s"})
	want := []string{"--config", "/etc/svcd.toml", "--socket=/s"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"postgres://user:pw@db:5432/x":   "postgres://***@db:5432/x",
		"clickhouse://host:9000/default": "clickhouse://host:9000/default",
		"/var/lib/svcd/history.db":       "/var/lib/svcd/history.db",
	}
	for in, want := range cases {
		if got := redact(in); got != want {
			t.Fatalf("redact(%q)=%q want %q", in, got, want)
		}
	}
}
