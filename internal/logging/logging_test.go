package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_EmitsServiceFields(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(&buf, "reservation-api", "test", "debug")
	logger.Debug("reservation created", slog.Uint64("reservation_id", 5))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reservation created", line["message"])
	assert.Equal(t, "DEBUG", line["severity"])
	assert.Equal(t, "reservation-api", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.EqualValues(t, 5, line["reservation_id"])
	assert.Contains(t, line, "timestamp")
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(&buf, "reservation-api", "", "warn")
	logger.Info("ignored")
	assert.Zero(t, buf.Len())
	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestRotatingFile_Writes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	w := RotatingFile(path)
	defer w.Close()
	n, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.FileExists(t, path)
}
