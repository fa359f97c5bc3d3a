package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gomodes/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.Logging{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("degenerate scalar model", "part", "ring")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "degenerate scalar model", rec["msg"])
	assert.Equal(t, "ring", rec["part"])
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.Logging{Level: "debug", Format: "text"}, &buf)
	log.Debug("newton iteration", "iteration", 3)
	assert.Contains(t, buf.String(), "iteration=3")

	assert.NotNil(t, Discard(nil))
	assert.Same(t, log, Discard(log))
}
