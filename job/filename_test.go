package job

import (
	"testing"

	"github.com/mirrobot/mirrobot/config"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSeriesNamePadsDigits(t *testing.T) {
	require.Equal(t, "Show S02E05 extra", CanonicalizeSeriesName("Show s2e5 extra"))
}

func TestCanonicalizeSeriesNameNoMatch(t *testing.T) {
	require.Equal(t, "Movie Title", CanonicalizeSeriesName("Movie Title"))
}

func TestSanitizeFilenameReplacesUnsafeChars(t *testing.T) {
	require.Equal(t, "a_b_c", SanitizeFilename(`a/b:c`))
}

func TestOutputFilenameStripsExtensionAndAddsResolutionTag(t *testing.T) {
	require.Equal(t, "Movie.Title.1080p.mp4", OutputFilename("Movie.Title.mkv", config.Res1080p))
}

func TestOutputFilenameCanonicalizesSeries(t *testing.T) {
	require.Equal(t, "Show.S01E02.720p.mp4", OutputFilename("Show.s1e2.mp4", config.Res720p))
}
