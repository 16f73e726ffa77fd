package config

import "time"

var Version string

// Clock lets tests generate fixed timestamps.
var Clock TimestampGenerator = RealTimestampGenerator{}

// Binaries shelled out to by the Process Runner. Overridable so tests can
// point at a fake binary on $PATH.
var (
	PathURLFetcher = "yt-dlp"
	PathFFmpeg     = "ffmpeg"
	PathFFprobe    = "ffprobe"
)

// DefaultDownloadTimeout is the hard ceiling on a single download's
// subprocess runtime (spec.md §5).
const DefaultDownloadTimeout = 30 * time.Minute

// ProgressTickInterval is how often the Progress Reporter re-renders the
// Dashboard Snapshot (spec.md §4.7).
const ProgressTickInterval = 4 * time.Second

// WatermarkDuration is how long (from the start of the output) the
// watermark is shown for, per spec.md §4.3.
const WatermarkDuration = 8 * time.Second

// WatermarkFadeIn / WatermarkFadeOut are the fade timings within
// WatermarkDuration.
const (
	WatermarkFadeIn  = 1 * time.Second
	WatermarkFadeOut = 2 * time.Second
)

// MaxActiveJobs is always 1: the Queue & Worker is strictly single-consumer
// FIFO (spec.md §2, §8 invariant 2). Kept as a named constant rather than a
// magic number scattered through job/.
const MaxActiveJobs = 1

// Per-resolution constants, spec.md §4.3.
type Resolution string

const (
	Res360p  Resolution = "360p"
	Res480p  Resolution = "480p"
	Res720p  Resolution = "720p"
	Res1080p Resolution = "1080p"
)

var ResolutionHeights = map[Resolution]int{
	Res360p:  360,
	Res480p:  480,
	Res720p:  720,
	Res1080p: 1080,
}

// VideoBitrateKbps is the two-pass target video bitrate per resolution.
var VideoBitrateKbps = map[Resolution]int{
	Res360p:  300,
	Res480p:  540,
	Res720p:  850,
	Res1080p: 2100,
}

// AudioBitrateKbpsHE / AudioBitrateKbpsLC are the stereo audio bitrates per
// resolution for the HE-AAC v2 and AAC-LC profiles respectively.
var AudioBitrateKbpsHE = map[Resolution]int{
	Res360p:  40,
	Res480p:  48,
	Res720p:  112,
	Res1080p: 128,
}

var AudioBitrateKbpsLC = map[Resolution]int{
	Res360p:  64,
	Res480p:  96,
	Res720p:  128,
	Res1080p: 160,
}
