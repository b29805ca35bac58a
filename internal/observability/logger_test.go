// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// -- Test Helper Functions --

// lockedBuffer is a goroutine-safe sink for the console core.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

var _ zapcore.WriteSyncer = (*lockedBuffer)(nil)

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf := &lockedBuffer{}

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}
		Initialize(cfg, buf)
		GetLogger().Info("This is a test message.")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, colorGreen)
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "TestService.")
	})

	t.Run("should fall back to default colors", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "console"}, buf)
		GetLogger().Warn("careful")
		Sync()

		assert.Contains(t, buf.String(), colorYellow+"WARN"+colorReset)
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf := &lockedBuffer{}

		cfg := config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}
		Initialize(cfg, buf)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "Log output should be valid JSON")

		assert.Equal(t, "warn", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		logPath := filepath.Join(t.TempDir(), "fastwork.log")

		cfg := config.LoggerConfig{Level: "debug", Format: "json", LogFile: logPath, MaxSize: 1}
		Initialize(cfg, &lockedBuffer{})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("should keep and close the file sink", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		logPath := filepath.Join(t.TempDir(), "fastwork.log")

		Initialize(config.LoggerConfig{Level: "info", Format: "json", LogFile: logPath, MaxSize: 1}, &lockedBuffer{})
		closerMu.Lock()
		_, isFile := globalCloser.(*lumberjack.Logger)
		closerMu.Unlock()
		assert.True(t, isFile, "the lumberjack sink must be retained for closing")

		GetLogger().Info("before sync")
		Sync()
		GetLogger().Info("after sync")
		Sync()

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "before sync")
		assert.Contains(t, string(content), "after sync", "the sink reopens after Sync closes it")

		ResetForTest()
		closerMu.Lock()
		assert.Nil(t, globalCloser)
		closerMu.Unlock()
	})

	t.Run("should fall back to a no-op logger when setup keeps failing", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		original := newLogger
		defer func() { newLogger = original }()
		calls := 0
		newLogger = func(config.LoggerConfig, zapcore.WriteSyncer) (*zap.Logger, io.Closer, error) {
			calls++
			return nil, nil, errors.New("no sink")
		}

		Initialize(config.LoggerConfig{Level: "info", LogFile: "/nowhere/fastwork.log"}, &lockedBuffer{})

		assert.Equal(t, 2, calls)
		require.NotNil(t, globalLogger.Load())
		assert.NotPanics(t, func() {
			GetLogger().Info("dropped")
			Sync()
		})
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		buf := &lockedBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, buf)
		logger1 := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, buf)
		logger2 := GetLogger()

		assert.Same(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestNewLogger(t *testing.T) {
	ResetForTest()
	buf := &lockedBuffer{}
	logger, closer, err := NewLogger(config.LoggerConfig{Level: "not-a-level", Format: "json"}, buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden", "unknown levels fall back to info")
	assert.Contains(t, buf.String(), "shown")
	assert.Nil(t, globalLogger.Load(), "NewLogger must not install a global logger")
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, &lockedBuffer{})

		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
