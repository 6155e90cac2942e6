package versioning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnsureSnapshotsOnce(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "Project")
	require.NoError(t, os.MkdirAll(root, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o640))

	s := New(root)
	now := time.Date(2026, time.January, 23, 10, 30, 0, 0, time.UTC)

	dest1, err := s.Ensure(now)
	require.NoError(t, err)
	require.True(t, s.Done())
	require.FileExists(t, filepath.Join(dest1, "a.txt"))
	require.Equal(t, "Project230120261030", filepath.Base(dest1))

	dest2, err := s.Ensure(now)
	require.NoError(t, err)
	require.Equal(t, dest1, dest2)
}

func TestEnsureExcludesExistingSnapshotDirs(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "Project")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Project230120261000"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Project230120261000", "stale.txt"), []byte("x"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("y"), 0o640))

	s := New(root)
	dest, err := s.Ensure(time.Date(2026, time.January, 23, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dest, "keep.txt"))
	require.NoDirExists(t, filepath.Join(dest, "Project230120261000"))
}
