package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPathsCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPaths(dir, "RUN_1")
	require.NoError(t, err)
	for _, d := range []string{p.Requests, p.Responses, p.Manifests, p.Files, p.Misc} {
		require.DirExists(t, d)
	}
}

func TestEventAppendsRedactedJSONL(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPaths(dir, "RUN_1")
	require.NoError(t, err)
	logger, err := Open(p)
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, logger.Event("step_start", map[string]any{"api_key": "sk-secret", "step": "A1"}))

	raw, err := os.ReadFile(filepath.Join(p.Root, "events.jsonl"))
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(raw[:len(raw)-1], &ev))
	require.Equal(t, "step_start", ev.Kind)
	require.Equal(t, "***REDACTED***", ev.Data["api_key"])
}

func TestLoadJSONRoundTripsSaveJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveJSON(dir, "run_state", map[string]any{"cursor": 5}))

	var out map[string]any
	require.NoError(t, LoadJSON(dir, "run_state", &out))
	require.Equal(t, float64(5), out["cursor"])
}

func TestLoadJSONMissingFileErrors(t *testing.T) {
	require.Error(t, LoadJSON(t.TempDir(), "run_state", &map[string]any{}))
}

func TestListRunDirsReturnsSubdirectories(t *testing.T) {
	logDir := t.TempDir()
	_, err := NewPaths(logDir, "RUN_A")
	require.NoError(t, err)
	_, err = NewPaths(logDir, "RUN_B")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "notadir.txt"), []byte("x"), 0o640))

	runIDs, err := ListRunDirs(logDir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"RUN_A", "RUN_B"}, runIDs)
}

func TestListRunDirsMissingLogDirReturnsEmpty(t *testing.T) {
	runIDs, err := ListRunDirs(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Empty(t, runIDs)
}

func TestSaveJSONIsAtomicAndReadable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveJSON(dir, "run state!", map[string]any{"cursor": 3}))

	raw, err := os.ReadFile(filepath.Join(dir, "run_state_.json"))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, float64(3), out["cursor"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, len(e.Name()) > 4 && e.Name()[:5] == ".tmp-", "leftover temp file: %s", e.Name())
	}
}
