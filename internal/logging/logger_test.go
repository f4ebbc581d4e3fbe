package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	testCases := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, level)

	level, err = ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("pages").
		With("page_id", "docs/intro").
		Warn(context.Background(), errors.New("boom"), "page render failed", "attempt", 2)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "page render failed", record["msg"])
	assert.Equal(t, "pages", record["component"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "docs/intro", record["page_id"])
	assert.Equal(t, float64(2), record["attempt"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	logger.Error(context.Background(), nil, "visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestLoggerDropsMalformedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})

	logger.Info(context.Background(), "fields", 42, "ignored", "dangling")

	line := buf.String()
	assert.Contains(t, line, "msg=fields")
	assert.False(t, strings.Contains(line, "ignored"))
	assert.False(t, strings.Contains(line, "dangling"))
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "nothing")
		logger.WithComponent("c").Info(context.Background(), "nothing")
	})
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Output: &buf})

	op := StartOperation(logger, "build")
	op.End(context.Background())

	assert.Contains(t, buf.String(), "operation=build")
	assert.Contains(t, buf.String(), "duration=")
}
