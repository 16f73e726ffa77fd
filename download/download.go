// Package download is the Downloader: it shells out to a URL-fetcher
// binary (yt-dlp) through the Process Runner, parses its progress lines
// into a Progress snapshot, and exposes a best-effort source-name prober.
// Grounded on the teacher's subprocess streaming convention (process/
// package here; subprocess/logging.go in the teacher). Download progress
// comes only from the fetcher's own output lines; no bytes are counted here.
package download

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
	"github.com/mirrobot/mirrobot/process"
)

// Progress is a point-in-time snapshot parsed from one fetcher output line
// (spec.md §4.2 / Dashboard Snapshot "download" phase fields).
type Progress struct {
	Percent float64
	Total   string
	Speed   string
	ETA     string
}

// OnProgress is called for each progress line successfully parsed.
type OnProgress func(Progress)

// Downloader drives the URL-fetcher subprocess.
type Downloader struct {
	runner *process.Runner
}

func New(runner *process.Runner) *Downloader {
	return &Downloader{runner: runner}
}

var (
	percentRe = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)
	ofRe      = regexp.MustCompile(`of\s+~?([0-9.]+\s*[KMGT]?i?B)`)
	atRe      = regexp.MustCompile(`at\s+([0-9.]+\s*[KMGT]?i?B/s)`)
	etaRe     = regexp.MustCompile(`ETA\s+(\d{1,2}:\d{2}(?::\d{2})?)`)
)

// parseLine extracts a Progress from a single fetcher output line. ok is
// false when the line carries no percent token.
func parseLine(line string) (Progress, bool) {
	pm := percentRe.FindStringSubmatch(line)
	if pm == nil {
		return Progress{}, false
	}
	pct, err := strconv.ParseFloat(pm[1], 64)
	if err != nil {
		return Progress{}, false
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p := Progress{Percent: pct}
	if m := ofRe.FindStringSubmatch(line); m != nil {
		p.Total = m[1]
	}
	if m := atRe.FindStringSubmatch(line); m != nil {
		p.Speed = m[1]
	}
	if m := etaRe.FindStringSubmatch(line); m != nil {
		p.ETA = m[1]
	}
	return p, true
}

// Download fetches src into destPath. A cancelled context takes precedence
// over reporting the failure as download-failed: callers should check
// ctx.Err() themselves before treating a returned error as a real failure
// (spec.md §4.2 contract).
func (d *Downloader) Download(ctx context.Context, src, destPath string, onProgress OnProgress) error {
	args := []string{
		"--no-playlist",
		"--no-part",
		"-o", destPath,
		src,
	}
	_, err := d.runner.Run(ctx, config.PathURLFetcher, args, process.Options{
		Kind:    "download",
		Timeout: config.DefaultDownloadTimeout,
		OnLine: func(tag, line string) {
			if p, ok := parseLine(line); ok && onProgress != nil {
				onProgress(p)
			}
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return errors.Unretriable(errors.ErrCancelled)
		}
		timeout := strings.Contains(err.Error(), "timed out")
		return errors.NewDownloadError(err, timeout)
	}
	info, statErr := os.Stat(destPath)
	if statErr != nil || info.Size() == 0 {
		return errors.NewDownloadError(fmt.Errorf("output file missing or empty: %s", destPath), false)
	}
	return nil
}

// ProbeName returns a best-effort human-readable display name for src. It
// never fails the caller's job: it uses the URL path's last segment
// (unescaped, with a doubled extension collapsed), and returns the literal
// "video" when the URL does not parse or has no usable last segment.
func ProbeName(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return "video"
	}
	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "video"
	}
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	name = collapseDuplicateExtensions(name)
	return name
}

// collapseDuplicateExtensions turns "movie.mp4.mp4" into "movie.mp4" —
// yt-dlp-style fetchers sometimes append the container extension to a
// name that already carries one.
func collapseDuplicateExtensions(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return name
	}
	base := strings.TrimSuffix(name, ext)
	if strings.HasSuffix(base, ext) {
		return base
	}
	return name
}
