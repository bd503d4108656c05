package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env      string
		explicit string
		want     slog.Level
	}{
		{"dev", "", slog.LevelDebug},
		{"prod", "", slog.LevelInfo},
		{"test", "", slog.LevelError},
		{"prod", "debug", slog.LevelDebug},
		{"dev", "WARN", slog.LevelWarn},
		{"whatever", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.env, tt.explicit), "env=%s level=%s", tt.env, tt.explicit)
	}
}

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Env: "prod", Output: &buf})
	require.NoError(t, err)

	log.Component("rooms").Info("room created", "room_id", "abc")

	assert.Contains(t, buf.String(), `"component":"rooms"`)
	assert.Contains(t, buf.String(), `"room_id":"abc"`)
}

func TestNew_UnknownEnv(t *testing.T) {
	_, err := New(Config{Env: "staging"})
	assert.Error(t, err)
}

func TestShortenPath(t *testing.T) {
	assert.Equal(t, "room/teardown.go", shortenPath("/src/internal/room/teardown.go", 2))
	assert.Equal(t, "a/b.go", shortenPath("a/b.go", 3))
	assert.Equal(t, "/x/y.go", shortenPath("/x/y.go", 0))
}

func TestNew_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Env: "prod", Output: &buf})
	require.NoError(t, err)

	log.Info("gateway connect", "token", "Bot abc.def", "guild_id", "g1")

	assert.NotContains(t, buf.String(), "abc.def")
	assert.Contains(t, buf.String(), `"token":"[redacted]"`)
	assert.Contains(t, buf.String(), `"guild_id":"g1"`)
}

func TestNew_DevTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Env: "dev", Output: &buf, TimeFormat: "15:04"})
	require.NoError(t, err)

	log.Debug("hello")

	assert.Regexp(t, `time=\d{2}:\d{2} `, buf.String())
}
