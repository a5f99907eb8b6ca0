package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSettingsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := FromSettings("warn", "json", &buf)

	log.Info("dropped")
	log.Warn("kept", "patient_id", "p-1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "p-1", entry["patient_id"])
}

func TestFromSettingsUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := FromSettings("loud", "json", &buf)
	log.Debug("hidden")
	log.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithContextRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := FromSettings("info", "json", &buf)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	log.WithContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)

	buf.Reset()
	assert.Same(t, log, log.WithContext(context.Background()))
}
