package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CASCADE_TEST_KEY", "sk-test-123")
	p, err := Load("CASCADE_TEST_KEY", "")
	require.NoError(t, err)

	var seen string
	require.NoError(t, p.WithKey(func(key string) error {
		seen = key
		return nil
	}))
	require.Equal(t, "sk-test-123", seen)
}

func TestLoadFromSecretFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.txt")
	require.NoError(t, os.WriteFile(path, []byte("sk-from-file\n"), 0o600))

	p, err := Load("CASCADE_UNSET_KEY", path)
	require.NoError(t, err)

	var seen string
	require.NoError(t, p.WithKey(func(key string) error {
		seen = key
		return nil
	}))
	require.Equal(t, "sk-from-file", seen)
}

func TestLoadMissingReturnsError(t *testing.T) {
	_, err := Load("CASCADE_UNSET_KEY", "")
	require.ErrorIs(t, err, ErrNoCredential)
}
