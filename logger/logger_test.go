package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf, slog.LevelWarn)

	log.Info("hidden")
	log.Warn("shown", slog.String("op", "save"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	require.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"op":"save"`)
	assert.Contains(t, out, `"level":"WARN"`)
}
