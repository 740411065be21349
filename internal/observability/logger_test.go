// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plattops/xviol/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -- Test Helper Functions --

// testSink wraps a bytes.Buffer so it satisfies zapcore.WriteSyncer.
type testSink struct {
	bytes.Buffer
}

func (s *testSink) Sync() error { return nil }

var _ zapcore.WriteSyncer = (*testSink)(nil)

// -- Test Cases --

func TestInitialize(t *testing.T) {

	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		sink := &testSink{}

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors: config.ColorConfig{
				Info: "green",
			},
		}
		Initialize(cfg, sink)
		logger := GetLogger()
		logger.Info("This is a test message.")

		output := sink.String()
		assert.Contains(t, output, "INFO", "output should contain the log level")
		assert.Contains(t, output, "This is a test message.", "output should contain the message")
		assert.Contains(t, output, colorGreen, "info level should be colorized green")
		assert.Contains(t, output, colorReset, "output should contain the reset color code")
		assert.Contains(t, output, "TestService.", "logger name should carry the dot suffix")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		sink := &testSink{}

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}
		Initialize(cfg, sink)
		logger := GetLogger()
		logger.Warn("This is a JSON message.", zap.String("key", "value"))

		var logEntry map[string]interface{}
		err := json.Unmarshal(sink.Bytes(), &logEntry)
		require.NoError(t, err, "log output should be valid JSON")

		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		logPath := filepath.Join(t.TempDir(), "xviol-test.log")

		cfg := config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: logPath,
			MaxSize: 1, // 1 MB
		}
		Initialize(cfg, &testSink{})
		logger := GetLogger()
		logger.Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.", "log file should contain the message")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		sink := &testSink{}

		cfg1 := config.LoggerConfig{Level: "info", Format: "console", ServiceName: "First"}
		Initialize(cfg1, sink)
		logger1 := GetLogger()

		cfg2 := config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "Second"}
		Initialize(cfg2, sink)
		logger2 := GetLogger()

		assert.Equal(t, logger1, logger2)
		logger2.Info("test")

		// The service name should be "First", not "Second".
		assert.True(t, strings.Contains(sink.String(), "First"))
		assert.False(t, strings.Contains(sink.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		cfg := config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}
		Initialize(cfg, &testSink{})

		logger := GetLogger()
		assert.Equal(t, globalLogger.Load(), logger)
	})
}

func TestResetForTest(t *testing.T) {
	ResetForTest()
	Initialize(config.LoggerConfig{Level: "info", ServiceName: "A"}, &testSink{})
	require.NotNil(t, globalLogger.Load())

	ResetForTest()
	assert.Nil(t, globalLogger.Load())
}
