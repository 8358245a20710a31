package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func fileOnlyConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.DisableStream = true
	cfg.Interval = 0
	cfg.Format = "json"
	return cfg
}

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARNING", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"", zerolog.DebugLevel},
		{"verbose", zerolog.DebugLevel},
	}
	for _, tt := range tests {
		cfg := Config{Level: tt.in}
		if got := cfg.ZerologLevel(); got != tt.want {
			t.Errorf("ZerologLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogPathCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	cfg := Config{Dir: dir}

	got, err := cfg.LogPath()
	if err != nil {
		t.Fatalf("LogPath: %v", err)
	}
	if got != dir {
		t.Errorf("expected %q, got %q", dir, got)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist: %v", err)
	}
}

func TestFilePathUsesLoggerName(t *testing.T) {
	cfg := Config{Dir: t.TempDir(), LoggerName: "svc"}
	path, err := cfg.FilePath()
	if err != nil {
		t.Fatalf("FilePath: %v", err)
	}
	if filepath.Base(path) != "svc.log" {
		t.Errorf("expected svc.log, got %s", filepath.Base(path))
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Encoding = "not-an-encoding"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown encoding")
	}

	cfg = DefaultConfig()
	cfg.DisableStream = true
	cfg.DisableFile = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when every output is disabled")
	}
}

func TestNewWritesToFile(t *testing.T) {
	cfg := fileOnlyConfig(t)
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello", map[string]interface{}{"k": "v"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Dir, cfg.LoggerName+".log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["message"] != "hello" || entry["k"] != "v" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry[FieldLogger] != cfg.LoggerName {
		t.Errorf("expected logger field %q, got %v", cfg.LoggerName, entry[FieldLogger])
	}
}

func TestLevelFiltersFileOutput(t *testing.T) {
	cfg := fileOnlyConfig(t)
	cfg.Level = "ERROR"
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("skipped")
	l.Error("kept")
	_ = l.Close()

	data, _ := os.ReadFile(filepath.Join(cfg.Dir, cfg.LoggerName+".log"))
	if strings.Contains(string(data), "skipped") {
		t.Error("info entry should be filtered at error level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("error entry missing")
	}
}

func TestRotateKeepsBackup(t *testing.T) {
	cfg := fileOnlyConfig(t)
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Info("before rotate")
	if err := l.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	l.Info("after rotate")

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected active file plus a backup, got %d files", len(entries))
	}
	active, _ := os.ReadFile(filepath.Join(cfg.Dir, cfg.LoggerName+".log"))
	if strings.Contains(string(active), "before rotate") {
		t.Error("active file should only hold entries written after rotation")
	}
}

func TestEncodingLatin1(t *testing.T) {
	cfg := fileOnlyConfig(t)
	cfg.Encoding = "latin1"
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("café")
	_ = l.Close()

	data, _ := os.ReadFile(filepath.Join(cfg.Dir, cfg.LoggerName+".log"))
	if !bytes.Contains(data, []byte("caf\xe9")) {
		t.Errorf("expected latin1 byte for é, got %q", data)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := FromZerolog(zerolog.New(&buf), "test")

	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.WithContext(ctx).Info("handled")

	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Errorf("expected request id in output, got %s", buf.String())
	}
	if l.WithContext(context.Background()) != l {
		t.Error("context without request id should return the same logger")
	}
}

func TestWithComponentAndError(t *testing.T) {
	var buf bytes.Buffer
	l := FromZerolog(zerolog.New(&buf), "test")

	l.WithComponent("database").WithError(errors.New("boom")).Warn("retrying")

	out := buf.String()
	if !strings.Contains(out, `"component":"database"`) {
		t.Errorf("missing component field: %s", out)
	}
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("missing error field: %s", out)
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	var buf bytes.Buffer
	SetGlobalLogger(FromZerolog(zerolog.New(&buf), "global"))
	Info("from global")

	if !strings.Contains(buf.String(), "from global") {
		t.Errorf("expected global logger to receive entry, got %s", buf.String())
	}
}

func TestLevelTag(t *testing.T) {
	if levelTag("warn") != "[WRN]" {
		t.Errorf("unexpected tag %s", levelTag("warn"))
	}
	if levelTag("trace") != "[TRACE]" {
		t.Errorf("unexpected tag %s", levelTag("trace"))
	}
}

func TestCloseStreamOnlyLogger(t *testing.T) {
	if err := NewDefault("x").Close(); err != nil {
		t.Errorf("Close on stream-only logger: %v", err)
	}
	if err := NewNop().Rotate(); err != nil {
		t.Errorf("Rotate on stream-only logger: %v", err)
	}
}
