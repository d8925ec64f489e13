package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
	Get().Info(context.Background(), "test message", String("k", "v"), Bool("ok", true), Duration("took", time.Second))
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	named := Named("test")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.With(Int("run", 1)).Info(context.Background(), "test message")
}

func TestFanoutWritesBothFormats(t *testing.T) {
	var text, js bytes.Buffer
	InitWithWriters(&text, &js)

	Get().Info(context.Background(), "stage done", Int("rows", 12))

	if !strings.Contains(text.String(), "msg=\"stage done\"") {
		t.Errorf("text output missing message: %q", text.String())
	}
	if !strings.Contains(js.String(), `"rows":12`) {
		t.Errorf("json output missing field: %q", js.String())
	}
	if !strings.Contains(js.String(), "logger_test.go") {
		t.Errorf("json output missing caller: %q", js.String())
	}
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sortie.log")
	if err := InitWithFile(path); err != nil {
		t.Fatalf("InitWithFile: %v", err)
	}
	Get().Warn(context.Background(), "to file")
	if err := Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestSetLevelString(t *testing.T) {
	_ = Init()
	for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("SetLevelString(%q) = %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var text, js bytes.Buffer
	InitWithWriters(&text, &js)
	_ = SetLevelString("info")

	Get().Debug(context.Background(), "hidden")

	if text.Len() != 0 || js.Len() != 0 {
		t.Errorf("debug output leaked at info level: %q %q", text.String(), js.String())
	}
}
