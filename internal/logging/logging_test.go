package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if New(level, "text") == nil {
			t.Errorf("New(%q, text) returned nil", level)
		}
	}
	if New("info", "json") == nil {
		t.Error("New(info, json) returned nil")
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RunID(ctx); got != "" {
		t.Errorf("RunID on empty context = %q, want empty", got)
	}

	ctx = WithRunID(ctx, "run_abc")
	if got := RunID(ctx); got != "run_abc" {
		t.Errorf("RunID = %q, want run_abc", got)
	}
}

func TestLoggerContext(t *testing.T) {
	logger := slog.Default()
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext did not return the stored logger")
	}

	if FromContext(context.Background()) == nil {
		t.Error("FromContext on empty context should fall back to default")
	}

	if L(WithRunID(ctx, "run_abc")) == nil {
		t.Error("L returned nil")
	}
}
