package cachestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestAddAssignsMonotonicIDs(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "registry.json"), "")
	require.NoError(t, err)

	f1 := filepath.Join(dir, "a.mp4")
	f2 := filepath.Join(dir, "b.mp4")
	writeFile(t, f1, 10)
	writeFile(t, f2, 20)

	e1, err := s.Add(f1, "a")
	require.NoError(t, err)
	e2, err := s.Add(f2, "b")
	require.NoError(t, err)

	require.Equal(t, "1", e1.ID)
	require.Equal(t, "2", e2.ID)
}

func TestLoadPrunesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "registry.json")

	s, err := Open(registry, "")
	require.NoError(t, err)
	f := filepath.Join(dir, "gone.mp4")
	writeFile(t, f, 5)
	_, err = s.Add(f, "gone")
	require.NoError(t, err)
	require.NoError(t, os.Remove(f))

	s2, err := Open(registry, "")
	require.NoError(t, err)
	entries, err := s2.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestManualDropAdoptedOnce(t *testing.T) {
	dir := t.TempDir()
	dropDir := filepath.Join(dir, "drop")
	require.NoError(t, os.Mkdir(dropDir, 0o755))
	writeFile(t, filepath.Join(dropDir, "movie.mkv"), 100)

	s, err := Open(filepath.Join(dir, "registry.json"), dropDir)
	require.NoError(t, err)

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, OriginManualDrop, entries[0].Origin)

	entries2, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries2, 1)
}

func TestClearRemovesFilesAndEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "registry.json"), "")
	require.NoError(t, err)
	f := filepath.Join(dir, "a.mp4")
	writeFile(t, f, 5)
	_, err = s.Add(f, "a")
	require.NoError(t, err)

	require.NoError(t, s.Clear())

	_, err = os.Stat(f)
	require.True(t, os.IsNotExist(err))
	entries, err := s.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}
