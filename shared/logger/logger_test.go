package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestComponentJSON(t *testing.T) {
	var buf bytes.Buffer
	InitializeWriter(&buf, "debug", true)
	defer Initialize("info", false)

	Component("poster").Info("posted", "website", "weasyl")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "poster", record["component"])
	assert.Equal(t, "weasyl", record["website"])
	assert.Equal(t, "posted", record["msg"])
}
