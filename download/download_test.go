package download

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLinePercentAndTokens(t *testing.T) {
	p, ok := parseLine("[download]  55.6% of ~10.00MiB at 2.00MiB/s ETA 00:04")
	require.True(t, ok)
	require.InDelta(t, 55.6, p.Percent, 0.001)
	require.Equal(t, "10.00MiB", p.Total)
	require.Equal(t, "2.00MiB/s", p.Speed)
	require.Equal(t, "00:04", p.ETA)
}

func TestParseLineZeroPercent(t *testing.T) {
	p, ok := parseLine("[download]   0.0% of 1.00GiB at Unknown speed ETA Unknown")
	require.True(t, ok)
	require.Equal(t, float64(0), p.Percent)
}

func TestParseLineNoPercentToken(t *testing.T) {
	_, ok := parseLine("[info] Downloading 1 format(s)")
	require.False(t, ok)
}

func TestParseLineClampsOutOfRange(t *testing.T) {
	p, ok := parseLine("150% done")
	require.True(t, ok)
	require.Equal(t, float64(100), p.Percent)
}

func TestProbeNameStripsQueryAndDecodesPercentEncoding(t *testing.T) {
	name := ProbeName("https://example.com/videos/My%20Movie.mp4?token=abc123")
	require.Equal(t, "My Movie.mp4", name)
}

func TestProbeNameCollapsesDuplicateExtensions(t *testing.T) {
	name := ProbeName("https://example.com/videos/movie.mp4.mp4")
	require.Equal(t, "movie.mp4", name)
}

func TestProbeNameFallsBackOnBadURL(t *testing.T) {
	name := ProbeName("http://example.com/%zz")
	require.Equal(t, "video", name)
}
