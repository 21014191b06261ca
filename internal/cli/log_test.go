package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("cached field", "id", "verse004") }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("cache hit", "key", "ct_ich:ct_ich_049:age") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("cache hit", "key", "ct_ich:ct_ich_049:age") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			tt.logFunc(logger)
			if gotLog := buf.Len() > 0; gotLog != tt.wantLog {
				t.Errorf("got log output = %v, want %v", gotLog, tt.wantLog)
			}
		})
	}
}

func TestProgressReportsDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	prog := newProgress(logger)
	time.Sleep(10 * time.Millisecond)
	prog.done("populated ct_ich")

	out := buf.String()
	if !strings.Contains(out, "populated ct_ich") {
		t.Errorf("done() output %q missing message", out)
	}
	if !strings.Contains(out, "ms)") {
		t.Errorf("done() output %q missing elapsed duration", out)
	}
}

func TestLoggerRoundTripsThroughContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	ctx := withLogger(context.Background(), logger)
	got := loggerFromContext(ctx)
	if got != logger {
		t.Fatal("loggerFromContext() did not return the attached logger")
	}

	got.Info("verified manifest", "dataset", "verse")
	if buf.Len() == 0 {
		t.Error("attached logger wrote nothing")
	}
}

func TestLoggerFromContextFallsBack(t *testing.T) {
	if loggerFromContext(context.Background()) == nil {
		t.Error("loggerFromContext() = nil without an attached logger")
	}
}
