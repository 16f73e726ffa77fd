// Package encode is the Encoder: given a local input file and a recipe, it
// drives ffmpeg through the Process Runner to produce one output per
// target resolution, burning in subtitles and an optional watermark.
// Duration probing and subtitle-stream discovery are grounded on the
// teacher's video/probe.go (gopkg.in/vansante/go-ffprobe.v2), and argv
// construction follows the teacher's pipeline/ffmpeg.go convention of
// building an explicit, no-shell exec.Command argument list.
package encode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
	"github.com/mirrobot/mirrobot/process"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// Mode is the quality/bitrate strategy for a single resolution's encode.
type Mode string

const (
	ModeCRF     Mode = "crf"
	ModeTwoPass Mode = "twopass"
	ModeHybrid  Mode = "hybrid"
)

// AudioProfile selects the AAC variant and its bitrate table.
type AudioProfile string

const (
	AudioHE AudioProfile = "he-aac"
	AudioLC AudioProfile = "aac-lc"
)

// SubtitleKind distinguishes an explicit external file from auto-detection
// against embedded streams, or no subtitle at all.
type SubtitleKind string

const (
	SubtitleExternal SubtitleKind = "external-file"
	SubtitleEmbedded SubtitleKind = "embedded-auto"
	SubtitleNone     SubtitleKind = "none"
)

// SubtitleStyle mirrors the force_style parameters of spec.md §3.
type SubtitleStyle struct {
	FontName string
	FontSize int
	Margin   int
	Bold     bool
}

// Recipe is the captured-by-value encoding configuration for one job
// (spec.md §3's Recipe/Template, narrowed to what the Encoder consumes).
type Recipe struct {
	Mode          Mode
	Audio         AudioProfile
	SubtitleKind  SubtitleKind
	SubtitlePath  string // set when SubtitleKind == SubtitleExternal
	Style         SubtitleStyle
	WatermarkText string
}

// Progress is a point-in-time snapshot of a single resolution's encode.
type Progress struct {
	Percent float64
}

type OnProgress func(Progress)

// indonesianTag matches spec.md's documented rule: any subtitle stream
// language tag containing "ind" as a substring (covers "ind" and
// "indonesian"), case-insensitive.
var indonesianTag = regexp.MustCompile(`(?i)ind`)

// timeRe extracts ffmpeg's "time=HH:MM:SS.ms" progress token from stderr.
var timeRe = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d+)`)

type Encoder struct {
	runner *process.Runner
}

func New(runner *process.Runner) *Encoder {
	return &Encoder{runner: runner}
}

// probe wraps ffprobe.ProbeURL so callers (and tests) can substitute it.
var probe = func(ctx context.Context, path string) (*ffprobe.ProbeData, error) {
	return ffprobe.ProbeURL(ctx, path)
}

// Duration probes input once and returns its length.
func (e *Encoder) Duration(ctx context.Context, input string) (time.Duration, error) {
	data, err := probe(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("encode: probing duration: %w", err)
	}
	if data.Format == nil {
		return 0, fmt.Errorf("encode: probe returned no format information")
	}
	return data.Format.Duration(), nil
}

// Metadata is a leeched file's dimensions and length, as needed to upload
// it as a native video rather than a bare document (leech pipeline,
// spec.md §4.9).
type Metadata struct {
	Width, Height int
	Duration      time.Duration
}

// Probe returns input's first video stream's dimensions plus its overall
// duration. Grounded on the teacher's video.Probe.ProbeFile
// probe-then-act convention.
func (e *Encoder) Probe(ctx context.Context, input string) (Metadata, error) {
	data, err := probe(ctx, input)
	if err != nil {
		return Metadata{}, fmt.Errorf("encode: probing metadata: %w", err)
	}
	m := Metadata{}
	if data.Format != nil {
		m.Duration = data.Format.Duration()
	}
	for _, s := range data.Streams {
		if s.CodecType == "video" {
			m.Width, m.Height = s.Width, s.Height
			break
		}
	}
	return m, nil
}

// resolveSubtitle returns the filter-graph subtitle source and, for an
// embedded stream, its stream index. ok is false (with errors.ErrNoSubtitle)
// when the recipe calls for auto-detection and no matching stream exists —
// the caller (Worker) treats that as a suspension signal, not a failure.
func (e *Encoder) resolveSubtitle(ctx context.Context, input string, r Recipe) (source string, streamIndex int, hasIndex bool, err error) {
	switch r.SubtitleKind {
	case SubtitleNone:
		return "", 0, false, nil
	case SubtitleExternal:
		return r.SubtitlePath, 0, false, nil
	case SubtitleEmbedded:
		data, perr := probe(ctx, input)
		if perr != nil {
			return "", 0, false, fmt.Errorf("encode: probing subtitles: %w", perr)
		}
		for _, s := range data.Streams {
			if s.CodecType != "subtitle" {
				continue
			}
			if s.Tags != nil && indonesianTag.MatchString(s.Tags.Language) {
				return input, s.Index, true, nil
			}
		}
		return "", 0, false, errors.ErrNoSubtitle
	default:
		return "", 0, false, fmt.Errorf("encode: unknown subtitle kind %q", r.SubtitleKind)
	}
}

// buildFilterChain assembles the scale/subtitles/drawtext filter graph of
// spec.md §4.3.
func buildFilterChain(height int, subSource string, subIndex int, hasIndex bool, style SubtitleStyle, watermarkText string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("scale=-2:%d", height))

	if subSource != "" {
		forceStyle := fmt.Sprintf("FontName=%s,FontSize=%d,MarginV=%d", style.FontName, style.FontSize, style.Margin)
		if style.Bold {
			forceStyle += ",Bold=1"
		}
		sub := fmt.Sprintf("subtitles=%s", escapeFilterPath(subSource))
		if hasIndex {
			sub += fmt.Sprintf(":si=%d", subIndex)
		}
		sub += fmt.Sprintf(":force_style='%s'", forceStyle)
		parts = append(parts, sub)
	}

	if watermarkText != "" {
		parts = append(parts, watermarkFilter(watermarkText))
	}

	return strings.Join(parts, ",")
}

// escapeFilterPath escapes characters ffmpeg's filtergraph parser treats
// as special when a path is embedded inside a filter argument.
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return r.Replace(path)
}

// watermarkFilter renders the drawtext expression: centred near the top,
// fading in over the first second and out over the last two seconds of
// config.WatermarkDuration, then gone.
func watermarkFilter(text string) string {
	d := config.WatermarkDuration.Seconds()
	fadeIn := config.WatermarkFadeIn.Seconds()
	fadeOut := config.WatermarkFadeOut.Seconds()
	alpha := fmt.Sprintf(
		"if(lt(t,%.2f),t/%.2f,if(lt(t,%.2f),1,if(lt(t,%.2f),(%.2f-t)/%.2f,0)))",
		fadeIn, fadeIn, d-fadeOut, d, d, fadeOut,
	)
	return fmt.Sprintf("drawtext=text='%s':fontsize=24:fontcolor=white:x=(w-text_w)/2:y=h*0.05:enable='lt(t,%.2f)':alpha='%s'",
		strings.ReplaceAll(text, "'", `\'`), d, alpha)
}

// Encode produces one output file for resolution, applying the recipe's
// mode/audio/subtitle/watermark settings. The caller supplies crf (used
// only in CRF-driven modes).
func (e *Encoder) Encode(ctx context.Context, input, outputPath string, resolution config.Resolution, crf int, r Recipe, duration time.Duration, onProgress OnProgress) error {
	height, ok := config.ResolutionHeights[resolution]
	if !ok {
		return fmt.Errorf("encode: unknown resolution %q", resolution)
	}

	subSource, subIndex, hasIndex, err := e.resolveSubtitle(ctx, input, r)
	if err != nil {
		return err
	}

	filterChain := buildFilterChain(height, subSource, subIndex, hasIndex, r.Style, r.WatermarkText)
	audioBitrate := audioBitrateFor(r.Audio, resolution)
	audioCodec := "aac"
	if r.Audio == AudioHE {
		audioCodec = "libfdk_aac"
	}

	mode := effectiveMode(r.Mode, resolution)

	switch mode {
	case ModeCRF:
		return e.runSinglePass(ctx, input, outputPath, filterChain, audioCodec, audioBitrate, crf, duration, onProgress)
	case ModeTwoPass:
		return e.runTwoPass(ctx, input, outputPath, filterChain, audioCodec, audioBitrate, resolution, duration, onProgress)
	default:
		return fmt.Errorf("encode: unknown mode %q", mode)
	}
}

// effectiveMode applies the hybrid policy: twopass for 360p, crf otherwise
// (spec.md §4.3). Any mode other than hybrid is honoured uniformly across
// all resolutions, including an explicit twopass request.
func effectiveMode(m Mode, resolution config.Resolution) Mode {
	if m != ModeHybrid {
		return m
	}
	if resolution == config.Res360p {
		return ModeTwoPass
	}
	return ModeCRF
}

func audioBitrateFor(profile AudioProfile, resolution config.Resolution) int {
	if profile == AudioHE {
		return config.AudioBitrateKbpsHE[resolution]
	}
	return config.AudioBitrateKbpsLC[resolution]
}

func (e *Encoder) runSinglePass(ctx context.Context, input, output, filterChain, audioCodec string, audioBitrateKbps, crf int, duration time.Duration, onProgress OnProgress) error {
	args := []string{
		"-y", "-i", input,
		"-vf", filterChain,
		"-c:v", "libx264", "-crf", strconv.Itoa(crf),
		"-c:a", audioCodec, "-b:a", fmt.Sprintf("%dk", audioBitrateKbps), "-ac", "2",
		"-movflags", "+faststart",
		output,
	}
	return e.run(ctx, args, duration, onProgress)
}

func (e *Encoder) runTwoPass(ctx context.Context, input, output, filterChain, audioCodec string, audioBitrateKbps int, resolution config.Resolution, duration time.Duration, onProgress OnProgress) error {
	bitrate := config.VideoBitrateKbps[resolution]
	passLogPrefix := filepath.Join(os.TempDir(), fmt.Sprintf("mirrobot-pass-%d", time.Now().UnixNano()))
	defer removePassLogs(passLogPrefix)

	pass1 := []string{
		"-y", "-i", input,
		"-vf", filterChain,
		"-c:v", "libx264", "-b:v", fmt.Sprintf("%dk", bitrate),
		"-pass", "1", "-passlogfile", passLogPrefix,
		"-an", "-f", "mp4", os.DevNull,
	}
	if err := e.run(ctx, pass1, duration, func(p Progress) {
		if onProgress != nil {
			onProgress(Progress{Percent: p.Percent / 2})
		}
	}); err != nil {
		return err
	}

	pass2 := []string{
		"-y", "-i", input,
		"-vf", filterChain,
		"-c:v", "libx264", "-b:v", fmt.Sprintf("%dk", bitrate),
		"-pass", "2", "-passlogfile", passLogPrefix,
		"-c:a", audioCodec, "-b:a", fmt.Sprintf("%dk", audioBitrateKbps), "-ac", "2",
		"-movflags", "+faststart",
		output,
	}
	return e.run(ctx, pass2, duration, func(p Progress) {
		if onProgress != nil {
			onProgress(Progress{Percent: 50 + p.Percent/2})
		}
	})
}

func removePassLogs(prefix string) {
	matches, _ := filepath.Glob(prefix + "*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func (e *Encoder) run(ctx context.Context, args []string, duration time.Duration, onProgress OnProgress) error {
	result, err := e.runner.Run(ctx, config.PathFFmpeg, args, process.Options{
		Kind: "encode",
		OnLine: func(tag, line string) {
			if tag != "stderr" {
				return
			}
			if p, ok := parseTimeProgress(line, duration); ok && onProgress != nil {
				onProgress(Progress{Percent: p})
			}
		},
		StderrTailLines: 40,
	})
	if err != nil {
		if ctx.Err() != nil {
			return errors.Unretriable(errors.ErrCancelled)
		}
		return errors.NewEncodeError(err, result.StderrTail)
	}
	return nil
}

// parseTimeProgress converts an ffmpeg "time=HH:MM:SS.ms" token into a
// percentage of duration.
func parseTimeProgress(line string, duration time.Duration) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	elapsed := time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second
	pct := float64(elapsed) / float64(duration) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
