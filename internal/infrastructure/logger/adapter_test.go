package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "What_movies", sanitize("What movies?"))
	assert.Equal(t, "agent", sanitize("???"))
	assert.Len(t, sanitize(strings.Repeat("a", 100)), 60)
}

func TestLoggerAdapter_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()

	log, err := NewLoggerAdapter(Config{Dir: dir, Name: "server", Level: "debug"})
	require.NoError(t, err)

	log.WithField("run_id", "r-1").Info("Run started", "query", "who directed Alien?")
	require.NoError(t, log.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*_server.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Run started"`)
	assert.Contains(t, string(data), `"run_id":"r-1"`)
	assert.Contains(t, string(data), `"query":"who directed Alien?"`)
}

func TestLoggerAdapter_WithFieldsDoesNotLeak(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := FromZap(zap.New(core))

	base.WithFields(map[string]any{"generation": 2}).Debug("scoped")
	base.Debug("unscoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ContextMap()["generation"])
	assert.NotContains(t, entries[1].ContextMap(), "generation")
}

func TestNewLoggerAdapter_NoSinksIsNop(t *testing.T) {
	log, err := NewLoggerAdapter(Config{})
	require.NoError(t, err)
	log.Info("dropped")
	assert.NoError(t, log.Close())
}
