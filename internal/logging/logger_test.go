package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		"":        INFO,
		"warning": WARN,
		" error ": ERROR,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWriterLoggerFiltersLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("loader", &buf, WARN)

	logger.Info("скрыто %d", 1)
	logger.Warn("видно %d", 2)
	logger.Error("тоже видно")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [loader] видно 2")
	assert.Contains(t, out, "[ERROR] [loader] тоже видно")
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	Configure(Options{Dir: dir, ConsoleLevel: ERROR, FileLevel: DEBUG})
	defer Configure(Options{ConsoleLevel: INFO, FileLevel: DEBUG})

	logger, err := NewLogger("storage")
	require.NoError(t, err)
	logger.Debug("сохранено %d чанков", 3)
	require.NoError(t, logger.Close())

	files, err := filepath.Glob(filepath.Join(dir, "storage_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[DEBUG] [storage] сохранено 3 чанков"))
}

func TestManagerReturnsSameLogger(t *testing.T) {
	m := &LoggerManager{loggers: make(map[string]*Logger)}
	a, err := m.GetLogger("api")
	require.NoError(t, err)
	b, err := m.GetLogger("api")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []string{"api"}, m.ListComponents())

	require.NoError(t, m.SetLogLevel("api", ERROR, ERROR))
	assert.Error(t, m.SetLogLevel("missing", ERROR, ERROR))
	require.NoError(t, m.CloseAll())
	assert.Empty(t, m.ListComponents())
}

func TestManagerComponentsSorted(t *testing.T) {
	m := &LoggerManager{loggers: make(map[string]*Logger)}
	for _, c := range []string{"storage", "api", "cache"} {
		assert.NotNil(t, m.MustGetLogger(c))
	}
	assert.Equal(t, []string{"api", "cache", "storage"}, m.ListComponents())
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	assert.Contains(t, HexDump([]byte{0x0a, 0x00}), "0a 00")
}
