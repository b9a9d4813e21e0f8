package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLoggerLevels(t *testing.T) {
	levels := []string{"", "debug", "info", "warn", "error", "unknown"}

	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			logger = nil
			if err := InitLogger(level, "console", ""); err != nil {
				t.Fatalf("InitLogger(%q) error = %v", level, err)
			}
			if logger == nil {
				t.Fatal("logger should not be nil after initialization")
			}

			// Should not panic at any level
			Debug("debug")
			Debugf("debug %s", "f")
			Info("info")
			Infof("info %s", "f")
			Warn("warn")
			Warnf("warn %s", "f")
			Error("error")
			Errorf("error %s", "f")
		})
	}
}

func TestInitLoggerJSONFormat(t *testing.T) {
	logger = nil

	if err := InitLogger("info", "json", ""); err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}

	Info("json formatted log")
}

func TestInitLoggerWithFile(t *testing.T) {
	logger = nil

	logFile := filepath.Join(t.TempDir(), "hashfarm.log")
	if err := InitLogger("info", "console", logFile); err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}

	Info("test log to file")
	Sync()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Error("Log file should exist")
	}
}

func TestInitLoggerInvalidFile(t *testing.T) {
	logger = nil

	err := InitLogger("info", "console", "/nonexistent/path/hashfarm.log")
	if err == nil {
		t.Error("InitLogger() should return error for invalid file path")
	}
}

func TestLogReturnsDefaultLogger(t *testing.T) {
	logger = nil

	if Log() == nil {
		t.Error("Log() should return a logger even when not initialized")
	}
	if Desugar() == nil {
		t.Error("Desugar() should return a logger")
	}
}

func TestLoggerReplacedOnReinit(t *testing.T) {
	logger = nil

	if err := InitLogger("info", "console", ""); err != nil {
		t.Fatalf("first InitLogger() error = %v", err)
	}
	first := logger

	if err := InitLogger("debug", "json", ""); err != nil {
		t.Fatalf("second InitLogger() error = %v", err)
	}

	if logger == first {
		t.Error("Logger should be replaced after re-initialization")
	}
}

func TestDevelopmentLoggerCaller(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer func() { logger = nil }()
	logger = developmentLogger(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))

	Info("wrapped")
	Desugar().Info("direct")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Caller.File, "log_test.go") {
			t.Errorf("%q caller = %s, want log_test.go", e.Message, e.Caller.File)
		}
	}
}
