package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", LevelDebug.String())
	require.Equal(t, "UNKNOWN", Level(99).String())
}

func TestNewWritesToExporterRedacted(t *testing.T) {
	exp := NewBufferedExporter()
	l, err := New(Config{Level: LevelInfo, Service: "test", Quiet: true, Exporter: exp})
	require.NoError(t, err)
	defer l.Close()

	l.Info("probe", "api_key", "sk-should-not-appear", "project", "demo")

	entries := exp.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "***REDACTED***", entries[0].Attrs["api_key"])
	require.Equal(t, "demo", entries[0].Attrs["project"])
}

func TestLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Level: LevelInfo, Service: "test", LogDir: dir, Quiet: true})
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Close())
}
