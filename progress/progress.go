// Package progress is the Progress Reporter: a loop owned by the Worker
// for the lifetime of a Running job that re-renders the Dashboard
// Snapshot into a single, fixed chat message every four seconds (spec.md
// §4.7). Directly grounded on the teacher's ProgressReporter: a
// benbjohnson/clock-driven ticker goroutine, mutex-guarded state,
// context-based Stop, panic-recovered main loop. Simplified from a scaled
// single-float progress tracker (Track/Set/TrackCount against a callback
// client) to a render-the-whole-snapshot-each-tick renderer, since what
// gets displayed here is the Dashboard Snapshot's multi-field state
// rather than one percentage sent to an HTTP callback.
package progress

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/log"
)

// Clock is overridden in tests to fast-forward the tick loop
// deterministically, exactly as the teacher's progress_test.go does.
var Clock clock.Clock = clock.New()

// MessageHandle is an opaque, transport-specific reference to a posted
// chat message.
type MessageHandle = interface{}

// Transport is the minimal chat capability the Reporter needs: post the
// initial message, then edit it in place. It never appends a new message.
type Transport interface {
	PostMessage(ctx context.Context, ownerID int64, text string) (MessageHandle, error)
	EditMessage(ctx context.Context, handle MessageHandle, text string) error
}

// Reporter owns one job's progress message for the lifetime of its
// Running phase.
type Reporter struct {
	ctx    context.Context
	cancel context.CancelFunc

	transport Transport

	mu     sync.Mutex
	handle MessageHandle
	render func() string
}

// Start posts the initial rendered message and launches the tick loop.
// jobID is used only for log correlation. render is called fresh on every
// tick and must be a pure read of current state — the reporter never
// mutates state.
func Start(ctx context.Context, jobID string, transport Transport, ownerID int64, render func() string) (*Reporter, error) {
	handle, err := transport.PostMessage(ctx, ownerID, render())
	if err != nil {
		return nil, fmt.Errorf("progress: posting initial message: %w", err)
	}
	rctx, cancel := context.WithCancel(ctx)
	r := &Reporter{
		ctx:       rctx,
		cancel:    cancel,
		transport: transport,
		handle:    handle,
		render:    render,
	}
	go r.loop(jobID)
	return r, nil
}

// Handle returns the live progress message, e.g. so the caller can delete
// or supersede it once the job reaches a terminal state.
func (r *Reporter) Handle() MessageHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// Stop ends the tick loop. It does not touch the message itself — the
// caller decides whether to delete it (success), leave it in its last
// state (failure), or supersede it (fanout completion).
func (r *Reporter) Stop() { r.cancel() }

func (r *Reporter) loop(jobID string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogError(jobID, "panic in progress reporter, recovering", fmt.Errorf("%v", rec), "trace", string(debug.Stack()))
		}
	}()
	ticker := Clock.Ticker(config.ProgressTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick(jobID)
		}
	}
}

func (r *Reporter) tick(jobID string) {
	r.mu.Lock()
	handle := r.handle
	r.mu.Unlock()
	if err := r.transport.EditMessage(r.ctx, handle, r.render()); err != nil {
		log.LogError(jobID, "progress message edit failed", err)
	}
}
