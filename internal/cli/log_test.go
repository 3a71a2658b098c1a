package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", LogInfo, func(l *log.Logger) { l.Info("fetching npm:react") }, true},
		{"debug at info level", LogInfo, func(l *log.Logger) { l.Debug("cache hit", "key", "registry:npm:react") }, false},
		{"debug at debug level", LogDebug, func(l *log.Logger) { l.Debug("cache hit", "key", "registry:npm:react") }, true},
		{"warn at info level", LogInfo, func(l *log.Logger) { l.Warn("github rate limited") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("logged = %v, want %v: %q", got, tt.wantLog, buf.String())
			}
		})
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, LogInfo))

	prog.done("Compared packages", "loaded", 2, "requested", 3)

	out := buf.String()
	for _, want := range []string{"Compared packages", "loaded=2", "requested=3", "elapsed="} {
		if !strings.Contains(out, want) {
			t.Errorf("progress output %q missing %q", out, want)
		}
	}
}

func TestProgressIncompleteIsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.WarnLevel)
	prog := newProgress(logger)

	prog.done("Compared packages")
	if buf.Len() != 0 {
		t.Fatalf("done should log at info level, got %q", buf.String())
	}

	prog.incomplete("Comparison stopped early", "error", errors.New("request timed out"))
	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "request timed out") {
		t.Errorf("incomplete output = %q", out)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("a bare context should fall back to log.Default()")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, LogInfo)
	ctx := withLogger(context.Background(), custom)
	if loggerFromContext(ctx) != custom {
		t.Fatal("loggerFromContext should return the attached logger")
	}
	loggerFromContext(ctx).Info("attached")
	if !strings.Contains(buf.String(), "attached") {
		t.Errorf("attached logger did not write: %q", buf.String())
	}
}
