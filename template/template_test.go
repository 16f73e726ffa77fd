package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/encode"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadYieldsEqualObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	c, err := Open(path)
	require.NoError(t, err)

	want := Template{
		Name:        "720p HE-AAC",
		Resolutions: []config.Resolution{config.Res720p},
		CRF:         23,
		Audio:       encode.AudioHE,
		Mode:        encode.ModeCRF,
		FontSize:    16,
		Margin:      25,
	}
	require.NoError(t, c.Save("720hevc", want))

	reloaded, err := Open(path)
	require.NoError(t, err)
	got, ok := reloaded.Get("720hevc")
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestDeleteReportsPresence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	c, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, c.Save("k", Template{Name: "k"}))

	ok, err := c.Delete("k")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Delete("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCRFForPrefersResolutionOverride(t *testing.T) {
	tpl := Template{
		CRF:           24,
		ResolutionCRF: map[config.Resolution]int{config.Res360p: 28},
	}
	require.Equal(t, 28, tpl.CRFFor(config.Res360p))
	require.Equal(t, 24, tpl.CRFFor(config.Res720p))
}

func TestListReturnsDefensiveCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Save("a", Template{Name: "a"}))

	list := c.List()
	list["a"] = Template{Name: "mutated"}

	fresh, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", fresh.Name)
}

func TestOpenRejectsCatalogueMissingRequiredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"720hevc": {"name": "no other fields"}}`), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match the expected shape")
}
