package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestAutoFormatUsesJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", "auto")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("signed in", "user", "Ann")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "signed in", record["msg"])
	assert.Equal(t, "Ann", record["user"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "text")
	require.NoError(t, err)
	logger.Warn("api unreachable", "route", "GET /classes")
	assert.Contains(t, buf.String(), `msg="api unreachable"`)
	assert.Contains(t, buf.String(), `route="GET /classes"`)

	_, err = New(&buf, "warn", "xml")
	assert.Error(t, err)
}
