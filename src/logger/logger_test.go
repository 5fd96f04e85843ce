package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal/cheesebot/src/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "parseLevel(%q)", tt.input)
	}
}

func TestJSONToTerminal(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := newLogger(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	defer closer()

	log.Debug("hidden")
	log.Info("received hello", "heartbeat_interval", "41.25s")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "received hello", entry["msg"])
	assert.Equal(t, "41.25s", entry["heartbeat_interval"])
}

func TestTeeToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "CheeseBot.log")

	log, closer, err := newLogger(&buf, config.LogConfig{Level: "debug", File: path})
	require.NoError(t, err)

	log.Debug("sent heartbeat", "sequence", "unset")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sent heartbeat")
	assert.Equal(t, buf.String(), string(data))
}

func TestOpenOutputError(t *testing.T) {
	_, _, err := newLogger(&bytes.Buffer{}, config.LogConfig{File: filepath.Join(t.TempDir(), "missing", "bot.log")})
	assert.Error(t, err)
}
