// Package upload is the Upload Fanout: given a finished encoded file, it
// launches one goroutine per configured host, honours the inter-host
// dependency graph of spec.md §4.4 by awaiting a dependency's terminal
// status before starting a dependent, and maintains a live host → status
// map for the Progress Reporter to render. Grounded on the teacher's
// opaque per-backend provider interface (clients/transcode_provider.go)
// and its concurrent-launch convention (pipeline/mediaconvert.go's
// errgroup-driven fan-out), adapted here to plain goroutines + channels
// since a single host's failure must never cancel its siblings — the
// opposite of errgroup.WithContext's fail-fast behaviour.
package upload

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
	"github.com/mirrobot/mirrobot/log"
)

// Status is a host's terminal or in-flight state.
type Status string

const (
	StatusPending                 Status = "pending"
	StatusRunning                 Status = "running"
	StatusSuccess                 Status = "success"
	StatusFailed                  Status = "failed"
	StatusSkipped                 Status = "skipped"
	StatusSkippedDependencyFailed Status = "skipped-due-to-failed-dependency"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped, StatusSkippedDependencyFailed:
		return true
	default:
		return false
	}
}

// Host is the opaque per-backend contract (spec.md §6): a local-path
// upload, or — for remote-ingest hosts — a remote-URL-driven one. Each
// concrete host in upload/hosts is always constructed and returns
// errors.ErrHostDisabled from Upload when disabled, so the fanout can treat
// "disabled" uniformly as "skipped".
type Host interface {
	// Name identifies the host for status map keys and metrics labels.
	Name() string
	// Upload pushes localPath to this host and returns its resolved URL.
	// in carries resolved URLs from dependencies this host depends on,
	// keyed by host name (e.g. in["Drive"] for FilePress/Abyss).
	Upload(ctx context.Context, localPath string, in map[string]string) (string, error)
	// DependsOn names the hosts whose URL must resolve before this host
	// can run; empty for independent hosts.
	DependsOn() []string
	// RequiresResolution1080pOnly is true for embed hosts gated to 1080p.
	RequiresResolution1080pOnly() bool
}

// Result is the terminal outcome recorded for one host.
type Result struct {
	Status Status
	URL    string
	Err    error
}

// Snapshot is a point-in-time copy of the fanout's host → status map, for
// the Progress Reporter to render (spec.md §3 Dashboard Snapshot, upload
// phase).
type Snapshot map[string]Result

// Fanout drives one set of host uploads for a single encoded resolution.
type Fanout struct {
	hosts      []Host
	resolution config.Resolution
	localPath  string

	mu      sync.Mutex
	results map[string]Result
	done    map[string]chan struct{}
}

// New launches a fanout over hosts for one completed output file. The
// returned Fanout is already running; callers read progress via Snapshot
// and wait for completion via Wait.
func New(ctx context.Context, jobID string, hosts []Host, resolution config.Resolution, localPath string) *Fanout {
	f := &Fanout{
		hosts:      hosts,
		resolution: resolution,
		localPath:  localPath,
		results:    make(map[string]Result, len(hosts)),
		done:       make(map[string]chan struct{}, len(hosts)),
	}
	for _, h := range hosts {
		f.results[h.Name()] = Result{Status: StatusPending}
		f.done[h.Name()] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for _, h := range hosts {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.run(ctx, jobID, h)
		}()
	}

	go func() {
		wg.Wait()
		log.Log(jobID, "fanout complete", "resolution", string(resolution))
	}()

	return f
}

func (f *Fanout) run(ctx context.Context, jobID string, h Host) {
	defer close(f.done[h.Name()])

	if h.RequiresResolution1080pOnly() && f.resolution != config.Res1080p {
		f.setResult(h.Name(), Result{Status: StatusSkipped})
		return
	}

	deps := map[string]string{}
	for _, depName := range h.DependsOn() {
		depResult, ok := f.await(depName)
		if !ok || depResult.Status != StatusSuccess {
			f.setResult(h.Name(), Result{Status: StatusSkippedDependencyFailed})
			return
		}
		deps[depName] = depResult.URL
	}

	f.setResult(h.Name(), Result{Status: StatusRunning})
	url, err := h.Upload(ctx, f.localPath, deps)
	if err != nil {
		if stderrors.Is(err, errors.ErrHostDisabled) {
			f.setResult(h.Name(), Result{Status: StatusSkipped})
			return
		}
		if errors.IsUnretriable(err) {
			log.Log(jobID, "host upload cancelled", "host", h.Name())
		} else {
			log.LogError(jobID, "host upload failed", err, "host", h.Name())
		}
		f.setResult(h.Name(), Result{Status: StatusFailed, Err: errors.NewUploadError(h.Name(), err)})
		return
	}
	f.setResult(h.Name(), Result{Status: StatusSuccess, URL: url})
}

// await blocks until depName reaches a terminal state and returns its
// result. ok is false if depName isn't part of this fanout at all.
func (f *Fanout) await(depName string) (Result, bool) {
	f.mu.Lock()
	ch, ok := f.done[depName]
	f.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	<-ch
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[depName]
	return r, true
}

func (f *Fanout) setResult(name string, r Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = r
}

// Snapshot returns a copy of the current host → status map.
func (f *Fanout) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(Snapshot, len(f.results))
	for k, v := range f.results {
		out[k] = v
	}
	return out
}

// Wait blocks until every host has reached a terminal state and returns
// the final snapshot.
func (f *Fanout) Wait() Snapshot {
	for _, h := range f.hosts {
		f.await(h.Name())
	}
	return f.Snapshot()
}

// FormatLinks renders the final per-host URL lines for the superseding
// chat message (spec.md §4.4 "Result and cleanup").
func FormatLinks(snap Snapshot, order []string) string {
	out := ""
	for _, name := range order {
		r, ok := snap[name]
		if !ok {
			continue
		}
		switch r.Status {
		case StatusSuccess:
			out += fmt.Sprintf("%s: %s\n", name, r.URL)
		case StatusSkipped:
			out += fmt.Sprintf("%s: skipped\n", name)
		case StatusSkippedDependencyFailed:
			out += fmt.Sprintf("%s: skipped (dependency failed)\n", name)
		case StatusFailed:
			out += fmt.Sprintf("%s: failed\n", name)
		}
	}
	return out
}
