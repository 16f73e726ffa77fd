// Package job is the Job record and the FIFO Queue & Worker: the single
// consumer that drains submitted jobs one at a time, drives each through
// download → (subtitle detect / suspend) → per-resolution encode → fanout
// spawn, and finalises it into a terminal state. Grounded on the
// teacher's pipeline.Coordinator/JobInfo (state machine, mutex-guarded
// job struct, panic-recovered async handler, finishJob bookkeeping) but
// rebuilt around a single mutex-guarded FIFO slice (with a notify channel)
// instead of a sync.Map of concurrent jobs, since spec.md mandates at most
// one Running job at a time.
package job

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/encode"
	"github.com/mirrobot/mirrobot/log"
)

// Kind is the job type (spec.md §3).
type Kind string

const (
	KindEncode      Kind = "encode"
	KindLeech       Kind = "leech"
	KindConvert     Kind = "convert"
	KindMirror      Kind = "mirror"
	KindMultiHost   Kind = "multihost-upload"
)

// State is a job's lifecycle state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateSuspended State = "suspended"
)

func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateCancelled, StateSuspended:
		return true
	default:
		return false
	}
}

// Job is one user request travelling through the pipeline (spec.md §3).
// Mutated only by the worker that owns it; read-only snapshots are handed
// to the Progress Reporter via Dashboard().
type Job struct {
	mu sync.Mutex

	ID          string
	OwnerID     int64
	Kind        Kind
	SourceURL   string
	CacheID     string // set when the source is a prior Raw Cache entry
	DisplayName string

	Resolutions []config.Resolution
	CRF         map[config.Resolution]int
	Mode        encode.Mode
	Audio       encode.AudioProfile

	SubtitleKind SubtitleSource
	SubtitlePath string
	Style        encode.SubtitleStyle

	// DownloadedFile is set once the download phase completes, and is
	// pre-populated on re-entry after a subtitle-triggered suspension so
	// the worker skips straight to encoding (spec.md §4.8).
	DownloadedFile string

	StatusMessageHandle interface{}

	state     State
	cancelled bool
	createdAt time.Time

	dash *Dashboard
}

// SubtitleSource is the job-level subtitle origin choice (spec.md §3).
type SubtitleSource string

const (
	SubtitleSourceExternalFile SubtitleSource = "external-file-path"
	SubtitleSourceEmbeddedAuto SubtitleSource = "embedded-auto"
	SubtitleSourceNone         SubtitleSource = "none"
)

// New constructs a freshly submitted job in state Queued.
func New(id string, ownerID int64, kind Kind, sourceURL string) *Job {
	return &Job{
		ID:        id,
		OwnerID:   ownerID,
		Kind:      kind,
		SourceURL: sourceURL,
		CRF:       map[config.Resolution]int{},
		state:     StateQueued,
		createdAt: config.Clock.GetTime(),
		dash:      newDashboard(),
	}
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

// Cancel sets the job's cancellation flag. Cooperative checkpoints (the
// Process Runner's context, the worker's per-step loop) observe this via
// Cancelled / contextFor.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = true
}

func (j *Job) Cancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Dashboard returns the job's live Dashboard Snapshot target for the
// Progress Reporter to read.
func (j *Job) Dashboard() *Dashboard { return j.dash }

// recovered runs f and converts a panic into an error, matching the
// teacher's pipeline.recovered[T] helper — used here so one job's bug
// never takes down the worker loop.
func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in job handler, recovering", "err", rec, "trace", string(debug.Stack()))
			err = fmt.Errorf("panic in job handler: %v", rec)
		}
	}()
	return f()
}

// contextFor derives a context that is cancelled either by parent or by
// the job's own cancellation flag, polled at pollInterval. Process Runner
// invocations should be given this context so a cancel() call tears down
// the active subprocess within one poll interval.
func contextFor(parent context.Context, j *Job, pollInterval time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		t := time.NewTicker(pollInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if j.Cancelled() {
					cancel()
					return
				}
			}
		}
	}()
	return ctx, cancel
}
