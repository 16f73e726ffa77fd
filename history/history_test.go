package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(Record{
		Filename: "movie.mkv",
		Quality:  "1080p",
		Links:    map[string]string{"drive": "https://drive.example/1"},
	}))

	reloaded, err := Open(path)
	require.NoError(t, err)
	all := reloaded.All()
	require.Len(t, all, 1)
	require.Equal(t, "movie.mkv", all[0].Filename)
	require.False(t, all[0].Timestamp.IsZero())
}

func TestAppendOrderPreserved(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	require.NoError(t, s.Append(Record{Filename: "a.mkv", Timestamp: time.Unix(1, 0)}))
	require.NoError(t, s.Append(Record{Filename: "b.mkv", Timestamp: time.Unix(2, 0)}))

	all := s.All()
	require.Equal(t, []string{"a.mkv", "b.mkv"}, []string{all[0].Filename, all[1].Filename})
}

func TestClearEmptiesStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	require.NoError(t, s.Append(Record{Filename: "a.mkv"}))
	require.NoError(t, s.Clear())
	require.Empty(t, s.All())
}

func TestFormatLinksSkipsMissingHost(t *testing.T) {
	records := []Record{
		{Filename: "a.mkv", Quality: "720p", Links: map[string]string{"drive": "https://d/1"}},
		{Filename: "b.mkv", Quality: "1080p", Links: map[string]string{"seedbox": "https://s/1"}},
	}
	out := FormatLinks(records, "drive")
	require.Contains(t, out, "a.mkv")
	require.NotContains(t, out, "b.mkv")
}
