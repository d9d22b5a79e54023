package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Levels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		l, err := NewLogger(lvl, FormatJSON, io.Discard)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", lvl, err)
		}
		if l == nil {
			t.Fatalf("NewLogger(%q) returned nil", lvl)
		}
	}
}

func TestNewLogger_DefaultIsInfo(t *testing.T) {
	l, err := NewLogger("", "", io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled at default level")
	}
	if !l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be enabled at default level")
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := NewLogger("chatty", FormatJSON, io.Discard); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewLogger_AutoIsJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger("info", FormatAuto, &buf)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("ranked", zap.Uint("project_id", 3))
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("auto format off a terminal should be JSON: %v\n%s", err, lines[0])
	}
	if rec["level"] != "info" || rec["msg"] != "ranked" || rec["project_id"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
	if _, ok := rec["ts"]; !ok {
		t.Errorf("record missing ts: %v", rec)
	}
	if _, ok := rec["caller"]; !ok {
		t.Errorf("record missing caller: %v", rec)
	}
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger("warn", FormatConsole, &buf)
	if err != nil {
		t.Fatal(err)
	}
	l.Warn("band nearly full")
	out := buf.String()
	if !strings.Contains(out, "\tWARN\t") || !strings.Contains(out, "band nearly full") {
		t.Errorf("console output = %q", out)
	}
	if json.Valid([]byte(strings.TrimSpace(out))) {
		t.Errorf("console output should not be JSON: %q", out)
	}
}

func TestNewLogger_BadFormat(t *testing.T) {
	if _, err := NewLogger("info", "xml", io.Discard); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithComponentAndProject(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := WithProject(WithComponent(zap.New(core), "recalc"), 12)
	l.Info("ranked")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "recalc" {
		t.Errorf("component = %v, want recalc", fields["component"])
	}
	if fields["project_id"] != uint64(12) {
		t.Errorf("project_id = %v (%T), want 12", fields["project_id"], fields["project_id"])
	}
}

func TestWithComponent_Empty(t *testing.T) {
	l := zap.NewNop()
	if WithComponent(l, "") != l {
		t.Error("empty component should return the same logger")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("OrNop should pass through a non-nil logger")
	}
}
