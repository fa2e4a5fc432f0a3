package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"qdreviews/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).With().Timestamp().Logger()
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "debug level",
			cfg:     &config.LoggingConfig{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&config.LoggingConfig{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	logger.WithField("chapter", "42").Info("chapter saved")
	logger.Debug("hidden at info")

	output := buf.String()
	if !strings.Contains(output, "chapter saved") {
		t.Errorf("message not in console output: %q", output)
	}
	if !strings.Contains(output, "chapter") || !strings.Contains(output, "42") {
		t.Errorf("field not in console output: %q", output)
	}
	if strings.Contains(output, "hidden at info") {
		t.Error("debug message should be filtered at info level")
	}
}

func TestFileOutputIsRotatingJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "run.log")
	cfg := &config.LoggingConfig{
		Level:      "info",
		File:       logPath,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}

	var console bytes.Buffer
	logger, err := NewWithWriter(cfg, &console)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	logger.InfoWithFields("run finished", map[string]interface{}{"comments": 12})

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"message":"run finished"`) {
		t.Errorf("file output missing message: %s", data)
	}
	if !strings.Contains(string(data), `"comments":12`) {
		t.Errorf("file output missing field: %s", data)
	}
	if !strings.Contains(string(data), `"app":"qdreviews"`) {
		t.Errorf("file output missing app field: %s", data)
	}
	if !strings.Contains(console.String(), "run finished") {
		t.Error("console should still receive output when a file is configured")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	parent := newBufferLogger(&buf)

	child := parent.WithField("book", "1035420986")
	child.WithFields(map[string]interface{}{"chapter": "7", "segments": 3}).Info("fetched")

	output := buf.String()
	for _, want := range []string{`"book":"1035420986"`, `"chapter":"7"`, `"segments":3`, "fetched"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %s: %s", want, output)
		}
	}

	buf.Reset()
	parent.Info("plain")
	if strings.Contains(buf.String(), "book") {
		t.Error("parent logger picked up child fields")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(errors.New("connection reset")).Error("request failed")
	output := buf.String()
	if !strings.Contains(output, "request failed") || !strings.Contains(output, "connection reset") {
		t.Errorf("error not in output: %s", output)
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithFields(map[string]interface{}{
		"string":   "test",
		"int64":    int64(456),
		"float":    3.14,
		"time":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"ints":     []int{1, 2},
		"cause":    errors.New("boom"),
		"custom":   struct{ Name string }{Name: "x"},
	}).Info("all types")

	output := buf.String()
	if !strings.Contains(output, `"cause":"boom"`) {
		t.Errorf("error field not rendered under its key: %s", output)
	}
	if !strings.Contains(output, `"int64":456`) {
		t.Errorf("int64 field missing: %s", output)
	}
}

func TestLogFailureAttachesStackUnderDebug(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tl := NewTestLogger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	LogFailure(tl, "chapter failed", errors.New("bad"), map[string]interface{}{"chapter": "1"})
	msgs := tl.GetMessagesByLevel("ERROR")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 error message, got %d", len(msgs))
	}
	if _, ok := msgs[0].Fields["stack"]; ok {
		t.Error("stack should not be attached at info level")
	}

	tl.Clear()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	LogFailure(tl, "chapter failed", errors.New("bad"), nil)
	msgs = tl.GetMessagesByLevel("ERROR")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 error message, got %d", len(msgs))
	}
	stack, _ := msgs[0].Fields["stack"].(string)
	if !strings.Contains(stack, "goroutine") {
		t.Errorf("expected a stack trace, got %q", stack)
	}
	if msgs[0].Error == nil || msgs[0].Error.Error() != "bad" {
		t.Errorf("error not captured: %v", msgs[0].Error)
	}
}

func TestTestLoggerCapturesChildFields(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("book", "b1").WithError(errors.New("x")).WarnWithFields("skipped", map[string]interface{}{"chapter": "c1"})
	tl.Info("done")

	if !tl.HasMessage("skipped") || !tl.HasMessage("done") {
		t.Fatal("messages from child loggers must land in the parent buffer")
	}
	warn := tl.GetMessagesByLevel("WARN")[0]
	if warn.Fields["book"] != "b1" || warn.Fields["chapter"] != "c1" {
		t.Errorf("fields not merged: %v", warn.Fields)
	}
	if warn.Error == nil {
		t.Error("error not carried")
	}
	if !tl.HasMessageContaining("kipp") {
		t.Error("HasMessageContaining should match substrings")
	}
	if tl.HasError() {
		t.Error("no error-level message was logged")
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Initialize(&config.LoggingConfig{Level: "info"}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
	Info("info message")
	WithField("key", "value").Info("with field")
	WithError(errors.New("test")).Warn("with error")
}
