package job

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/upload"
	"github.com/mirrobot/mirrobot/upload/hosts"
)

// Render is the pure function the Progress Reporter calls every tick
// (spec.md §4.7): it turns the job's current Dashboard Snapshot into the
// one fixed chat message shown while the job is Running.
func Render(j *Job) string {
	d := j.Dashboard()
	var b strings.Builder

	fmt.Fprintf(&b, "%s — %s\n", d.Filename, d.Phase)

	switch d.Phase {
	case PhaseDownload:
		dl := d.Download()
		fmt.Fprintf(&b, "downloading: %.1f%%", dl.Percent)
		if dl.Total != "" {
			fmt.Fprintf(&b, " of %s", dl.Total)
		}
		if dl.Speed != "" {
			fmt.Fprintf(&b, " at %s", dl.Speed)
		}
		if dl.ETA != "" {
			fmt.Fprintf(&b, " ETA %s", dl.ETA)
		}
		b.WriteString("\n")
	case PhaseEncode, PhaseUpload:
		encodeSnap := d.EncodeSnapshot()
		uploadSnap := d.UploadSnapshot()
		for _, res := range j.Resolutions {
			if es, ok := encodeSnap[res]; ok {
				fmt.Fprintf(&b, "%s encode: %s", res, es.Status)
				if es.Status == "running" {
					fmt.Fprintf(&b, " (%.1f%%)", es.Percent)
				}
				b.WriteString("\n")
			}
			if snap, ok := uploadSnap[res]; ok {
				b.WriteString(renderHostLine(snap))
			}
		}
	case PhaseFinalizing:
		b.WriteString("finalizing\n")
	}

	return b.String()
}

func renderHostLine(snap upload.Snapshot) string {
	var b strings.Builder
	for _, name := range hosts.Order {
		r, ok := snap[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", name, r.Status)
	}
	return b.String()
}

// Summary renders the final superseding message once every resolution's
// fanout has completed (spec.md §4.4 "Result and cleanup").
func Summary(j *Job, snapshots map[config.Resolution]upload.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — done\n", j.DisplayName)

	resolutions := make([]config.Resolution, 0, len(snapshots))
	for r := range snapshots {
		resolutions = append(resolutions, r)
	}
	sort.Slice(resolutions, func(i, k int) bool { return resolutions[i] < resolutions[k] })

	for _, res := range resolutions {
		fmt.Fprintf(&b, "\n%s:\n", res)
		b.WriteString(upload.FormatLinks(snapshots[res], hosts.Order))
	}
	return b.String()
}

// ResolutionResult renders the per-host link report for a single finished
// resolution (spec.md §4.4: "per-resolution result messages remain").
func ResolutionResult(j *Job, res config.Resolution, snap upload.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", j.DisplayName, res)
	b.WriteString(upload.FormatLinks(snap, hosts.Order))
	return b.String()
}

// BatchSummary is sent to the last job's originator once the queue drains
// after at least one completed job (spec.md §4.5).
func BatchSummary(count int, elapsed string) string {
	return fmt.Sprintf("batch complete: %d job(s) in %s", count, elapsed)
}
