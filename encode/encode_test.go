package encode

import (
	"context"
	"testing"
	"time"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
	"github.com/stretchr/testify/require"
	"gopkg.in/vansante/go-ffprobe.v2"
)

func TestEffectiveModeHybrid(t *testing.T) {
	require.Equal(t, ModeTwoPass, effectiveMode(ModeHybrid, config.Res360p))
	require.Equal(t, ModeCRF, effectiveMode(ModeHybrid, config.Res720p))
	require.Equal(t, ModeCRF, effectiveMode(ModeHybrid, config.Res1080p))
}

func TestEffectiveModeExplicitTwoPassUniform(t *testing.T) {
	require.Equal(t, ModeTwoPass, effectiveMode(ModeTwoPass, config.Res720p))
	require.Equal(t, ModeTwoPass, effectiveMode(ModeTwoPass, config.Res1080p))
}

func TestParseTimeProgress(t *testing.T) {
	p, ok := parseTimeProgress("frame=100 fps=25 time=00:00:30.00 bitrate=500kbits/s", 60*time.Second)
	require.True(t, ok)
	require.InDelta(t, 50, p, 0.01)
}

func TestParseTimeProgressNoToken(t *testing.T) {
	_, ok := parseTimeProgress("frame=100 fps=25", 60*time.Second)
	require.False(t, ok)
}

func TestParseTimeProgressZeroDuration(t *testing.T) {
	_, ok := parseTimeProgress("time=00:00:30.00", 0)
	require.False(t, ok)
}

func TestBuildFilterChainIncludesScaleAndSubtitles(t *testing.T) {
	chain := buildFilterChain(720, "/subs/a.srt", 0, false, SubtitleStyle{FontName: "Arial", FontSize: 16, Margin: 25}, "")
	require.Contains(t, chain, "scale=-2:720")
	require.Contains(t, chain, "subtitles=/subs/a.srt")
	require.Contains(t, chain, "FontSize=16")
	require.NotContains(t, chain, "drawtext")
}

func TestBuildFilterChainWithWatermark(t *testing.T) {
	chain := buildFilterChain(1080, "", 0, false, SubtitleStyle{}, "Mirrobot")
	require.Contains(t, chain, "drawtext")
	require.Contains(t, chain, "Mirrobot")
}

func TestBuildFilterChainEmbeddedStreamIndex(t *testing.T) {
	chain := buildFilterChain(480, "input.mkv", 3, true, SubtitleStyle{}, "")
	require.Contains(t, chain, "si=3")
}

func TestResolveSubtitleExternal(t *testing.T) {
	e := New(nil)
	source, _, hasIndex, err := e.resolveSubtitle(context.Background(), "input.mkv", Recipe{
		SubtitleKind: SubtitleExternal,
		SubtitlePath: "/subs/a.srt",
	})
	require.NoError(t, err)
	require.Equal(t, "/subs/a.srt", source)
	require.False(t, hasIndex)
}

func TestResolveSubtitleEmbeddedMatchesIndonesian(t *testing.T) {
	restore := probe
	probe = func(ctx context.Context, path string) (*ffprobe.ProbeData, error) {
		return &ffprobe.ProbeData{
			Streams: []*ffprobe.Stream{
				{CodecType: "subtitle", Index: 2, Tags: &ffprobe.Tags{Language: "eng"}},
				{CodecType: "subtitle", Index: 4, Tags: &ffprobe.Tags{Language: "indonesian"}},
			},
		}, nil
	}
	defer func() { probe = restore }()

	e := New(nil)
	source, index, hasIndex, err := e.resolveSubtitle(context.Background(), "input.mkv", Recipe{SubtitleKind: SubtitleEmbedded})
	require.NoError(t, err)
	require.Equal(t, "input.mkv", source)
	require.True(t, hasIndex)
	require.Equal(t, 4, index)
}

func TestResolveSubtitleEmbeddedNoMatchSignalsSuspension(t *testing.T) {
	restore := probe
	probe = func(ctx context.Context, path string) (*ffprobe.ProbeData, error) {
		return &ffprobe.ProbeData{
			Streams: []*ffprobe.Stream{
				{CodecType: "subtitle", Index: 2, Tags: &ffprobe.Tags{Language: "eng"}},
			},
		}, nil
	}
	defer func() { probe = restore }()

	e := New(nil)
	_, _, _, err := e.resolveSubtitle(context.Background(), "input.mkv", Recipe{SubtitleKind: SubtitleEmbedded})
	require.ErrorIs(t, err, errors.ErrNoSubtitle)
}
