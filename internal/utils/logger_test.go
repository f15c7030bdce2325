package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "integrity.log")
	logger, closer := NewLogger(LogOptions{Environment: "production", File: path})
	logger.Info("model loaded", "version", "v1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"model loaded"`)
	assert.Contains(t, string(data), `"version":"v1"`)
}

func TestSlogLoggerLogRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.LogRequest("GET", "/health", 200, "1ms")
	assert.Contains(t, buf.String(), "level=INFO")

	buf.Reset()
	l.LogRequest("POST", "/api/v1/attempts/1/evaluate", 404, "2ms")
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	l.LogRequest("POST", "/api/v1/model/retrain", 503, "2ms")
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	l.With("attempt_id", 7).LogError(errors.New("boom"), "evaluation failed")
	assert.Contains(t, buf.String(), "attempt_id=7")
	assert.Contains(t, buf.String(), "error=boom")
}
