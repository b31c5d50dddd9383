package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", "json")
	ctx := WithRunID(context.Background(), "run-42")
	l.DebugContext(ctx, "stage done", "stage", "aggregate")
	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-42"`) || !strings.Contains(out, `"stage":"aggregate"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "text")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filtering failed: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "bogus": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}
