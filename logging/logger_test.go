package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level LogLevel) (*QuorumLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Format = "json"
	cfg.Output = &buf
	cfg.AddSource = false
	return NewLogger(cfg), &buf
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelWarn)

	logger.Debug("not shown")
	logger.Info("not shown either")
	logger.Warn("shown")
	logger.Error("also shown")

	out := buf.String()
	assert.NotContains(t, out, "not shown")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "also shown")
}

func TestFormattingArgs(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.Info("session created session_id=%s participants=%d", "sess-1", 3)

	assert.Contains(t, buf.String(), "session created session_id=sess-1 participants=3")
}

func TestContextualAttributes(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.WithComponent("session").WithSession("sess-1").WithContext("actor", "alice").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "alice", entry["actor"])
}

func TestWithMethodsDoNotMutateParent(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	_ = logger.WithComponent("turn").WithContext("k", "v")
	logger.Info("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	_, hasComponent := entry["component"]
	assert.False(t, hasComponent)
	_, hasK := entry["k"]
	assert.False(t, hasK)
}

func TestLogTurn(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelInfo)

	logger.LogTurn("sess-1", 3, 4, 1, 250*time.Millisecond)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "Turn completed", entry["msg"])
	assert.Equal(t, "sess-1", entry["target_id"])
	assert.Equal(t, float64(3), entry["turn"])
	assert.Equal(t, float64(1), entry["timeouts"])
}

func TestLogDelivery(t *testing.T) {
	logger, buf := newBufferedLogger(LogLevelDebug)

	logger.LogDelivery("audit", "sess-1", 2, false, errors.New("sink down"))

	out := buf.String()
	assert.Contains(t, out, "Relay delivery failed")
	assert.Contains(t, out, "sink down")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Format = "text"
	cfg.Output = &buf
	cfg.AddSource = false
	logger := NewLogger(cfg)

	logger.Info("plain text line")
	assert.Contains(t, buf.String(), "plain text line")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}

func TestNoOpLoggerIsSilent(t *testing.T) {
	// Must not panic.
	l := NoOpLogger{}
	l.Debug("a")
	l.Info("b", 1)
	l.Warn("c")
	l.Error("d", errors.New("x"))
}
