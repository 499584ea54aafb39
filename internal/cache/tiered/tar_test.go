package tiered

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarDirUntarDirRoundTrips(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "b.txt"), []byte("world"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, tarDir(src, &buf))

	dst := t.TempDir()
	require.NoError(t, untarDir(dst, &buf))

	a, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(a))

	b, err := os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(b))
}

func TestTarDirOnEmptyDirProducesEmptyUntarResult(t *testing.T) {
	src := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, tarDir(src, &buf))

	dst := t.TempDir()
	require.NoError(t, untarDir(dst, &buf))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
