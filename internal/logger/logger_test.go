package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_ConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", zap.String("document_id", "faq"))
	require.NoError(t, log.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "faq")
}

func TestNew_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragdocs.log")
	log, err := New(Config{Level: "info", File: path, Quiet: true}, nil)
	require.NoError(t, err)

	log.Info("document stored", zap.Int("chunks", 3))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "document stored", entry["message"])
	assert.EqualValues(t, 3, entry["chunks"])
}

func TestNew_BadLevel(t *testing.T) {
	log, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Nil(t, log)
}

func TestNew_EmptyLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{}, &buf)
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_QuietWithoutFileIsNop(t *testing.T) {
	log, err := New(Config{Quiet: true}, nil)
	require.NoError(t, err)
	assert.NotNil(t, log)
}
