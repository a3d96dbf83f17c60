package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"WARN":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		" error ": slog.LevelError,
	}
	for input, expected := range cases {
		level, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, level, input)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestJsonHandlerUsesCloudLoggingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", slog.LevelDebug))

	logger.Warn("report does not match schema", "violations", 2, "code", ANALYSIS)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARNING", entry["severity"])
	assert.Equal(t, "report does not match schema", entry["message"])
	assert.Equal(t, "ANALYSIS", entry["code"])
	assert.NotContains(t, entry, "level")
	assert.NotContains(t, entry, "msg")
}

func TestNestedKeysUntouched(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", slog.LevelInfo))

	logger.Info("request", slog.Group("http", slog.String("msg", "inner")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, map[string]interface{}{"msg": "inner"}, entry["http"])
}

func TestInitLoggingFanout(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var console, file bytes.Buffer
	InitLogging(&console, slog.LevelInfo, "text", "salesctl", NewHandler(&file, "json", slog.LevelInfo))

	slog.Debug("hidden")
	slog.Info("starting step", "step", "build")

	assert.Contains(t, console.String(), "starting step")
	assert.Contains(t, console.String(), "service_type=salesctl")
	assert.NotContains(t, console.String(), "hidden")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "build", entry["step"])
	assert.Equal(t, "INFO", entry["severity"])
}
