// Package process is the Process Runner: it spawns the external tools the
// job engine shells out to (URL fetcher, ffmpeg, ffprobe, remote copy
// clients), streams their stdout/stderr line by line the way the teacher's
// subprocess.LogOutputs does, and — unlike the teacher, which never kills a
// descendant — puts every child in its own process group so a cancelled or
// timed-out job can be torn down along with whatever grandchildren it spawned
// (yt-dlp forks ffmpeg for some sites; ffmpeg never forks but the symmetry is
// worth keeping).
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mirrobot/mirrobot/errors"
	"github.com/mirrobot/mirrobot/log"
	"github.com/mirrobot/mirrobot/metrics"
)

// LineFunc is called once per line of output, stdout and stderr
// interleaved as they arrive. tag is "stdout" or "stderr".
type LineFunc func(tag, line string)

// Options configures a single subprocess invocation.
type Options struct {
	// Kind labels the subprocess for logging/metrics (e.g. "download",
	// "encode", "probe").
	Kind string
	// JobID scopes log lines the way log.Log does everywhere else.
	JobID string
	// Dir is the working directory for the child, if non-empty.
	Dir string
	// Timeout, if non-zero, kills the process group if the command hasn't
	// exited by then.
	Timeout time.Duration
	// OnLine receives each line of combined output as it is read.
	OnLine LineFunc
	// StderrTailLines bounds how many trailing stderr lines are kept and
	// returned in a Result, for embedding in encode-failed/upload-failed
	// error messages (spec.md §7).
	StderrTailLines int
}

// Result is what a Runner hands back after the subprocess exits.
type Result struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

// Runner runs subprocesses on behalf of the job engine. It carries no
// mutable state itself; it exists so call sites don't repeat the
// process-group plumbing.
type Runner struct{}

func New() *Runner { return &Runner{} }

const defaultStderrTailLines = 40

// Run starts name with args, waits for it to exit (or for ctx to be
// cancelled / the timeout to elapse, whichever comes first), and returns a
// Result. A non-zero exit is reported as errors.NonzeroExitError. A
// context cancellation or timeout kills the whole process group; a
// cancellation then returns errors.Unretriable(errors.ErrCancelled), and a
// timeout returns an unretriable "<kind>: timed out after <timeout>" error.
func (r *Runner) Run(ctx context.Context, name string, args []string, opts Options) (Result, error) {
	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = opts.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, errors.NewSpawnError(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, errors.NewSpawnError(err)
	}

	tail := newTailBuffer(opts.StderrTailLines)

	if err := cmd.Start(); err != nil {
		return Result{}, errors.NewSpawnError(err)
	}
	log.Log(opts.JobID, "subprocess started", "kind", opts.Kind, "cmd", name, "args", strings.Join(args, " "))
	metrics.Default.Subprocess.Started.WithLabelValues(opts.Kind).Inc()

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, stdout, "stdout", opts.OnLine, nil)
	go streamLines(&wg, stderr, "stderr", opts.OnLine, tail)

	waitDone := make(chan error, 1)
	go func() { wg.Wait(); waitDone <- cmd.Wait() }()

	var waitErr error
	var killed bool
	select {
	case waitErr = <-waitDone:
	case <-runCtx.Done():
		killed = true
		_ = killProcessGroup(cmd)
		waitErr = <-waitDone
	}

	result := Result{
		StderrTail: tail.String(),
		Duration:   time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	metrics.Default.Subprocess.Duration.WithLabelValues(opts.Kind).Observe(result.Duration.Seconds())

	if killed {
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			metrics.Default.Subprocess.Killed.WithLabelValues(opts.Kind, "timeout").Inc()
			return result, errors.Unretriable(fmt.Errorf("%s: timed out after %s", opts.Kind, opts.Timeout))
		}
		metrics.Default.Subprocess.Killed.WithLabelValues(opts.Kind, "cancelled").Inc()
		return result, errors.Unretriable(errors.ErrCancelled)
	}
	if waitErr != nil {
		return result, errors.NewNonzeroExitError(result.ExitCode, result.StderrTail)
	}
	return result, nil
}

// killProcessGroup sends SIGKILL to the negative pid, which on Linux/macOS
// targets every process in the group rather than just the direct child —
// this is what lets cancellation reap a yt-dlp-spawned ffmpeg instance too.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

func streamLines(wg *sync.WaitGroup, src io.Reader, tag string, onLine LineFunc, tail *tailBuffer) {
	defer wg.Done()
	s := bufio.NewReader(src)
	for {
		line, err := s.ReadSlice('\n')
		if len(line) > 0 {
			text := strings.TrimRight(string(line), "\r\n")
			if tail != nil {
				tail.Add(text)
			}
			if onLine != nil {
				onLine(tag, text)
			}
		}
		if err != nil {
			return
		}
	}
}

// tailBuffer keeps the last N lines written to it, for embedding in
// error messages without holding the entire stderr stream in memory.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = defaultStderrTailLines
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
