package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// resetLoggerState resets all global logger state for test isolation
func resetLoggerState() {
	_ = CloseFileWriter()
	Log = zerolog.Nop()
	logContext = logContextData{}
}

func TestInit(t *testing.T) {
	t.Cleanup(resetLoggerState)

	Init(false)
	if Log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Init(false) level = %v, want info", Log.GetLevel())
	}

	Init(true)
	if Log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("Init(true) level = %v, want debug", Log.GetLevel())
	}
}

func TestLogFunctions(t *testing.T) {
	t.Cleanup(resetLoggerState)

	tmpDir := t.TempDir()
	cfg := &LoggingConfig{MaxSizeMB: 1}
	if err := InitWithFile(true, tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}

	if Debug() == nil {
		t.Error("Debug() should return non-nil event")
	}
	if Info() == nil {
		t.Error("Info() should return non-nil event")
	}
	if Warn() == nil {
		t.Error("Warn() should return non-nil event")
	}
	if Error() == nil {
		t.Error("Error() should return non-nil event")
	}
}

func TestLoggingConfigDefaults(t *testing.T) {
	cfg := &LoggingConfig{}
	if !cfg.IsFileEnabled() {
		t.Error("IsFileEnabled should default to true when nil")
	}

	falseVal := false
	cfg.FileEnabled = &falseVal
	if cfg.IsFileEnabled() {
		t.Error("IsFileEnabled should return false when explicitly set")
	}

	cfg = &LoggingConfig{}
	if cfg.GetMaxSizeMB() != 50 {
		t.Errorf("GetMaxSizeMB should default to 50, got %d", cfg.GetMaxSizeMB())
	}
	if cfg.GetMaxAgeDays() != 7 {
		t.Errorf("GetMaxAgeDays should default to 7, got %d", cfg.GetMaxAgeDays())
	}
	if cfg.GetMaxBackups() != 3 {
		t.Errorf("GetMaxBackups should default to 3, got %d", cfg.GetMaxBackups())
	}

	cfg = &LoggingConfig{MaxSizeMB: 20, MaxAgeDays: 14, MaxBackups: 5}
	if cfg.GetMaxSizeMB() != 20 || cfg.GetMaxAgeDays() != 14 || cfg.GetMaxBackups() != 5 {
		t.Errorf("custom values not honoured: %+v", cfg)
	}
}

func TestInitWithFile(t *testing.T) {
	t.Cleanup(resetLoggerState)

	tmpDir := t.TempDir()
	cfg := &LoggingConfig{MaxSizeMB: 1, MaxAgeDays: 1, MaxBackups: 1}

	if err := InitWithFile(false, tmpDir, cfg); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}

	expectedPath := filepath.Join(tmpDir, LogFileName)
	if got := GetLogFilePath(); got != expectedPath {
		t.Errorf("GetLogFilePath = %q, want %q", got, expectedPath)
	}

	Info().Msg("test log message")

	if err := CloseFileWriter(); err != nil {
		t.Errorf("CloseFileWriter failed: %v", err)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "test log message") {
		t.Error("Log file should contain the test message")
	}
}

func TestInitWithFileFallsBackToConsole(t *testing.T) {
	t.Cleanup(resetLoggerState)

	falseVal := false
	tests := []struct {
		name string
		dir  string
		cfg  *LoggingConfig
	}{
		{name: "disabled", dir: "/some/path", cfg: &LoggingConfig{FileEnabled: &falseVal}},
		{name: "empty dir", dir: "", cfg: &LoggingConfig{}},
		{name: "nil config", dir: "/some/path", cfg: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLoggerState()
			if err := InitWithFile(false, tt.dir, tt.cfg); err != nil {
				t.Fatalf("InitWithFile should not fail: %v", err)
			}
			if GetLogFilePath() != "" {
				t.Error("GetLogFilePath should be empty when file logging is off")
			}
		})
	}
}

func TestSetContext(t *testing.T) {
	t.Cleanup(resetLoggerState)

	SetContext("TestCompiler", "1")
	ctx := getContext()
	if ctx.Test != "TestCompiler" {
		t.Errorf("Test = %q, want %q", ctx.Test, "TestCompiler")
	}
	if ctx.RunID != "1" {
		t.Errorf("RunID = %q, want %q", ctx.RunID, "1")
	}

	ClearContext()
	ctx = getContext()
	if ctx.Test != "" || ctx.RunID != "" {
		t.Error("ClearContext should reset both fields")
	}
}

func TestContextInFileLog(t *testing.T) {
	t.Cleanup(resetLoggerState)

	tmpDir := t.TempDir()
	if err := InitWithFile(false, tmpDir, &LoggingConfig{MaxSizeMB: 1}); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}

	SetContext("TestEndToEnd", "")
	Info().Msg("context test")
	_ = CloseFileWriter()

	content, err := os.ReadFile(filepath.Join(tmpDir, LogFileName))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "TestEndToEnd") {
		t.Error("Log should contain test name")
	}
	if strings.Contains(string(content), `"run_id"`) {
		t.Error("Log should not contain run_id field when empty")
	}
}

func TestCloseFileWriterIsIdempotent(t *testing.T) {
	t.Cleanup(resetLoggerState)

	if err := InitWithFile(false, t.TempDir(), &LoggingConfig{MaxSizeMB: 1}); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}
	if err := CloseFileWriter(); err != nil {
		t.Errorf("CloseFileWriter failed: %v", err)
	}
	if GetLogFilePath() != "" {
		t.Error("GetLogFilePath should return empty after CloseFileWriter")
	}
	if err := CloseFileWriter(); err != nil {
		t.Errorf("Double CloseFileWriter should not error: %v", err)
	}
}

func TestContextReachesDerivedLoggers(t *testing.T) {
	t.Cleanup(resetLoggerState)

	tmpDir := t.TempDir()
	if err := InitWithFile(false, tmpDir, &LoggingConfig{MaxSizeMB: 1}); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}

	SetContext("TestCompiler", "1a2b3c4d")
	derived := Log.With().Str("component", "container").Logger()
	derived.Info().Msg("from derived logger")
	ClearContext()
	Log.Info().Msg("after clear")
	_ = CloseFileWriter()

	content, err := os.ReadFile(filepath.Join(tmpDir, LogFileName))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), content)
	}
	if !strings.Contains(lines[0], `"test":"TestCompiler"`) || !strings.Contains(lines[0], `"run_id":"1a2b3c4d"`) {
		t.Errorf("derived logger event missing context: %s", lines[0])
	}
	if strings.Contains(lines[1], `"test"`) {
		t.Errorf("event after ClearContext still carries context: %s", lines[1])
	}
}
