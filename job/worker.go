package job

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mirrobot/mirrobot/cachestore"
	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/download"
	"github.com/mirrobot/mirrobot/encode"
	"github.com/mirrobot/mirrobot/errors"
	"github.com/mirrobot/mirrobot/history"
	"github.com/mirrobot/mirrobot/log"
	"github.com/mirrobot/mirrobot/metrics"
	"github.com/mirrobot/mirrobot/progress"
	"github.com/mirrobot/mirrobot/suspend"
	"github.com/mirrobot/mirrobot/upload"
	"github.com/mirrobot/mirrobot/upload/hosts"
)

// Downloader is the Worker's view of download.Downloader, narrowed so
// tests can substitute a fake.
type Downloader interface {
	Download(ctx context.Context, src, destPath string, onProgress download.OnProgress) error
}

// Encoder is the Worker's view of encode.Encoder.
type Encoder interface {
	Duration(ctx context.Context, input string) (time.Duration, error)
	Probe(ctx context.Context, input string) (encode.Metadata, error)
	Encode(ctx context.Context, input, outputPath string, resolution config.Resolution, crf int, r encode.Recipe, duration time.Duration, onProgress encode.OnProgress) error
}

// Dependencies wires the Worker to every collaborator package (spec.md
// §4.5, grounded on the teacher's Coordinator construction in
// cmd/*/main.go).
type Dependencies struct {
	Downloader Downloader
	Encoder    Encoder
	Cache      *cachestore.Store
	Suspend    *suspend.Registry
	History    *history.Store
	Hosts      config.HostsConfig
	Transport  ChatTransport
	WorkDir    string
}

// pollInterval is how often a job's derived context checks its
// cancellation flag.
const pollInterval = 250 * time.Millisecond

// Worker is the single FIFO consumer described in spec.md §4.5. Directly
// grounded on the teacher's pipeline.Coordinator: a background goroutine
// drains a mutex-guarded queue one item at a time, panics are recovered,
// and terminal-state metrics are emitted from the same place the job is
// finalised.
type Worker struct {
	queue *Queue
	deps  Dependencies

	mu         sync.Mutex
	running    *Job
	batchCount int
	batchOwner int64
	batchStart time.Time
}

func NewWorker(q *Queue, deps Dependencies) *Worker {
	return &Worker{queue: q, deps: deps}
}

// Running returns the job currently being processed, or nil when Idle.
func (w *Worker) Running() *Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Cancel cancels the running job if it belongs to ownerID, returning
// whether it found one to cancel (spec.md §6 `cancel` command).
func (w *Worker) Cancel(ownerID int64) bool {
	w.mu.Lock()
	j := w.running
	w.mu.Unlock()
	if j == nil || j.OwnerID != ownerID {
		return false
	}
	j.Cancel()
	return true
}

// Run drains the queue until ctx is cancelled. It blocks the calling
// goroutine; callers run it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		j, ok := w.queue.dequeue()
		if !ok {
			w.maybeEmitBatchSummary(ctx)
			select {
			case <-ctx.Done():
				return
			case <-w.queue.notify:
			case <-time.After(time.Second):
			}
			continue
		}
		w.runOne(ctx, j)
	}
}

func (w *Worker) runOne(ctx context.Context, j *Job) {
	w.mu.Lock()
	w.running = j
	if w.batchCount == 0 {
		w.batchStart = config.Clock.GetTime()
	}
	w.mu.Unlock()

	metrics.Default.Job.JobsInFlight.Set(1)
	j.setState(StateRunning)

	start := config.Clock.GetTime()
	recovered(func() (struct{}, error) {
		w.process(ctx, j)
		return struct{}{}, nil
	})
	elapsed := config.Clock.GetTime().Sub(start)

	metrics.Default.Job.JobsInFlight.Set(0)
	metrics.Default.Job.JobDuration.WithLabelValues(string(j.Kind)).Observe(elapsed.Seconds())
	metrics.Default.Job.JobsCompleted.WithLabelValues(string(j.Kind), string(j.State())).Inc()

	w.mu.Lock()
	w.running = nil
	if j.State() != StateSuspended {
		w.batchCount++
		w.batchOwner = j.OwnerID
	}
	w.mu.Unlock()
}

func (w *Worker) maybeEmitBatchSummary(ctx context.Context) {
	w.mu.Lock()
	count, owner, start := w.batchCount, w.batchOwner, w.batchStart
	w.batchCount = 0
	w.mu.Unlock()
	if count == 0 {
		return
	}
	elapsed := config.Clock.GetTime().Sub(start)
	if _, err := w.deps.Transport.PostMessage(ctx, owner, BatchSummary(count, elapsed.Round(time.Second).String())); err != nil {
		log.LogError("worker", "posting batch summary failed", err)
	}
}

// process dispatches a dequeued job to its pipeline (spec.md §4.9:
// encode jobs run the full pipeline; leech/convert/mirror/multihost jobs
// share the Downloader and Process Runner but bypass Encoder and/or
// Upload Fanout as documented per kind).
func (w *Worker) process(parent context.Context, j *Job) {
	ctx, cancel := contextFor(parent, j, pollInterval)
	defer cancel()

	dash := j.Dashboard()
	dash.Filename = j.DisplayName
	dash.Kind = j.Kind
	dash.Phase = PhaseDownload

	reporter, err := progress.Start(ctx, j.ID, w.deps.Transport, j.OwnerID, func() string { return Render(j) })
	if err != nil {
		log.LogError(j.ID, "starting progress reporter failed", err)
		j.setState(StateFailed)
		return
	}

	switch j.Kind {
	case KindEncode:
		w.runEncode(ctx, j, reporter)
	case KindLeech:
		w.runLeech(ctx, j, reporter)
	case KindConvert:
		w.runDirectUpload(ctx, j, reporter, hosts.Subset(w.deps.Hosts, "Seedbox"))
	case KindMirror:
		w.runDirectUpload(ctx, j, reporter, hosts.Subset(w.deps.Hosts, "Drive", "FilePress"))
	case KindMultiHost:
		w.runDirectUpload(ctx, j, reporter, hosts.Subset(w.deps.Hosts, "Mirror", "OneClick", "GeneralFile"))
	default:
		reporter.Stop()
		w.finishFailed(ctx, j, reporter, fmt.Errorf("unknown job kind %q", j.Kind))
	}
}

// ensureDownloaded downloads the job's source unless a prior suspension
// already left a local file behind (spec.md §4.8: "sets the
// downloaded-file field so the download phase is skipped on re-entry").
func (w *Worker) ensureDownloaded(ctx context.Context, j *Job) (string, error) {
	if j.DownloadedFile != "" {
		return j.DownloadedFile, nil
	}
	if j.DisplayName == "" {
		j.DisplayName = download.ProbeName(j.SourceURL)
	}
	dest := filepath.Join(w.deps.WorkDir, j.ID+"-"+SanitizeFilename(j.DisplayName))

	dash := j.Dashboard()
	err := w.deps.Downloader.Download(ctx, j.SourceURL, dest, func(p download.Progress) {
		dash.SetDownload(DownloadStatus{Percent: p.Percent, Total: p.Total, Speed: p.Speed, ETA: p.ETA})
	})
	if err != nil {
		return "", err
	}
	j.DownloadedFile = dest

	if j.CacheID == "" {
		entry, err := w.deps.Cache.Add(dest, j.DisplayName)
		if err != nil {
			log.LogError(j.ID, "adding downloaded file to cache failed", err)
		} else {
			j.CacheID = entry.ID
			metrics.Default.Job.CacheEntryCount.Set(float64(w.deps.Cache.Count()))
		}
	}
	return dest, nil
}

func (w *Worker) runEncode(ctx context.Context, j *Job, reporter *progress.Reporter) {
	input, err := w.ensureDownloaded(ctx, j)
	if err != nil {
		w.finishDownloadOutcome(ctx, j, reporter, err)
		return
	}

	dash := j.Dashboard()
	dash.Phase = PhaseEncode

	duration, err := w.deps.Encoder.Duration(ctx, input)
	if err != nil {
		w.finishFailed(ctx, j, reporter, err)
		return
	}

	recipe := encode.Recipe{
		Mode:          j.Mode,
		Audio:         j.Audio,
		SubtitleKind:  subtitleKindFor(j.SubtitleKind),
		SubtitlePath:  j.SubtitlePath,
		Style:         j.Style,
		WatermarkText: "",
	}

	var wg sync.WaitGroup
	for i, res := range j.Resolutions {
		resCtx := log.WithLogValues(ctx, "job_id", j.ID, "resolution", string(res))
		log.V(5).LogCtx(resCtx, "starting resolution pass")
		dash.SetEncode(res, EncodeStatus{Status: "running"})
		output := filepath.Join(w.deps.WorkDir, OutputFilename(j.DisplayName, res))

		encErr := w.deps.Encoder.Encode(ctx, input, output, res, j.CRF[res], recipe, duration, func(p encode.Progress) {
			dash.SetEncode(res, EncodeStatus{Status: "running", Percent: p.Percent})
			log.V(7).LogCtx(resCtx, "encode tick", "percent", p.Percent)
		})

		if encErr != nil {
			if i == 0 && stderrors.Is(encErr, errors.ErrNoSubtitle) {
				w.suspend(ctx, j, reporter, input)
				return
			}
			dash.SetEncode(res, EncodeStatus{Status: "failed"})
			if errors.IsUnretriable(encErr) {
				w.finishCancelled(ctx, j, reporter)
			} else {
				w.finishFailed(ctx, j, reporter, encErr)
			}
			return
		}
		if j.Cancelled() {
			w.finishCancelled(ctx, j, reporter)
			return
		}

		dash.SetEncode(res, EncodeStatus{Status: "done", Percent: 100})
		dash.Phase = PhaseUpload

		wg.Add(1)
		go w.spawnFanout(&wg, j, res, output)
	}

	dash.Phase = PhaseFinalizing
	reporter.Stop()
	_ = w.deps.Transport.DeleteMessage(ctx, reporter.Handle())
	j.setState(StateDone)

	// Fanouts are detached and run on their own background context
	// (spec.md §4.5): the Worker returns here and is free to dequeue the
	// next job while they finish uploading in the background.
}

// spawnFanout runs one resolution's Upload Fanout to completion on its
// own, detached context — uploads continue even if the job that produced
// them is later cancelled or the Worker moves on (spec.md §4.5
// "Detached fanouts are not cancelled by this path by design").
func (w *Worker) spawnFanout(wg *sync.WaitGroup, j *Job, res config.Resolution, output string) {
	defer wg.Done()
	ctx := context.Background()

	hostList := hosts.All(w.deps.Hosts)
	f := upload.New(ctx, j.ID, hostList, res, output)
	snap := f.Wait()
	j.Dashboard().SetUpload(res, snap)

	for name, r := range snap {
		status := string(r.Status)
		metrics.Default.Upload.HostResult.WithLabelValues(name, status).Inc()
	}

	if _, err := w.deps.Transport.PostMessage(ctx, j.OwnerID, ResolutionResult(j, res, snap)); err != nil {
		log.LogError(j.ID, "posting resolution result failed", err)
	}

	links := map[string]string{}
	for name, r := range snap {
		if r.Status == upload.StatusSuccess {
			links[name] = r.URL
		}
	}
	info, statErr := os.Stat(output)
	var size int64
	if statErr == nil {
		size = info.Size()
	}
	if err := w.deps.History.Append(history.Record{
		Filename: filepath.Base(output),
		Quality:  string(res),
		Links:    links,
		Meta:     history.Metadata{OutputSize: size},
	}); err != nil {
		log.LogError(j.ID, "appending history record failed", err)
	}

	_ = os.Remove(output)
}

// runLeech downloads the source and uploads it directly to the chat
// transport as a native video, probing width/height/duration first
// (spec.md §4.9).
func (w *Worker) runLeech(ctx context.Context, j *Job, reporter *progress.Reporter) {
	input, err := w.ensureDownloaded(ctx, j)
	if err != nil {
		w.finishDownloadOutcome(ctx, j, reporter, err)
		return
	}

	j.Dashboard().Phase = PhaseFinalizing
	meta, err := w.deps.Encoder.Probe(ctx, input)
	if err != nil {
		log.LogError(j.ID, "probing leeched file metadata failed", err)
	}

	if err := w.deps.Transport.PostVideo(ctx, j.OwnerID, input, meta.Width, meta.Height, meta.Duration, j.DisplayName); err != nil {
		w.finishFailed(ctx, j, reporter, fmt.Errorf("posting leeched video: %w", err))
		return
	}

	reporter.Stop()
	_ = w.deps.Transport.DeleteMessage(ctx, reporter.Handle())
	j.setState(StateDone)
}

// runDirectUpload downloads the source and fans it out to a fixed host
// subset, bypassing the Encoder entirely (spec.md §4.9 `convert`, plus
// the `fp` and `up` batch commands which share the same download-then-
// upload shape over a different subset of hosts).
func (w *Worker) runDirectUpload(ctx context.Context, j *Job, reporter *progress.Reporter, hostList []upload.Host) {
	input, err := w.ensureDownloaded(ctx, j)
	if err != nil {
		w.finishDownloadOutcome(ctx, j, reporter, err)
		return
	}

	j.Dashboard().Phase = PhaseUpload
	f := upload.New(ctx, j.ID, hostList, config.Res1080p, input)
	snap := f.Wait()
	j.Dashboard().SetUpload(config.Res1080p, snap)

	reporter.Stop()
	if _, err := w.deps.Transport.PostMessage(ctx, j.OwnerID, ResolutionResult(j, config.Res1080p, snap)); err != nil {
		log.LogError(j.ID, "posting upload result failed", err)
	}
	_ = w.deps.Transport.DeleteMessage(ctx, reporter.Handle())
	j.setState(StateDone)
}

// suspend parks j awaiting a subtitle file (spec.md §4.8).
func (w *Worker) suspend(ctx context.Context, j *Job, reporter *progress.Reporter, downloadedFile string) {
	if j.CacheID == "" {
		if entry, err := w.deps.Cache.Add(downloadedFile, j.DisplayName); err != nil {
			log.LogError(j.ID, "adding suspended job's file to cache failed", err)
		} else {
			j.CacheID = entry.ID
		}
	}

	reporter.Stop()
	_ = w.deps.Transport.DeleteMessage(ctx, reporter.Handle())

	handle, err := w.deps.Transport.PostMessage(ctx, j.OwnerID, fmt.Sprintf(
		"%s: no Indonesian subtitle track found. Reply with a subtitle file to continue, or cancel.", j.DisplayName))
	if err != nil {
		log.LogError(j.ID, "posting suspension prompt failed", err)
	}

	w.deps.Suspend.Add(j.OwnerID, suspend.Entry{
		Job:                 j,
		DownloadedFile:      downloadedFile,
		StatusMessageHandle: handle,
		CacheID:             j.CacheID,
	})
	metrics.Default.Job.SuspendedJobs.Inc()
	j.setState(StateSuspended)
}

// Resume re-admits a suspended job at the head of the queue once the user
// has supplied a subtitle file (spec.md §4.8).
func (w *Worker) Resume(subtitlePath string, ownerID int64) bool {
	entry, ok := w.deps.Suspend.PopOldest(ownerID)
	if !ok {
		return false
	}
	j, ok := entry.Job.(*Job)
	if !ok {
		return false
	}
	j.SubtitlePath = subtitlePath
	j.SubtitleKind = SubtitleSourceExternalFile
	j.DownloadedFile = entry.DownloadedFile
	j.setState(StateQueued)
	w.queue.PrependHead(j)
	return true
}

func (w *Worker) finishDownloadOutcome(ctx context.Context, j *Job, reporter *progress.Reporter, err error) {
	var dlErr errors.DownloadError
	if ctx.Err() != nil || (errors.IsUnretriable(err) && !stderrors.As(err, &dlErr)) {
		w.finishCancelled(ctx, j, reporter)
		return
	}
	w.finishFailed(ctx, j, reporter, err)
}

func (w *Worker) finishFailed(ctx context.Context, j *Job, reporter *progress.Reporter, cause error) {
	reporter.Stop()
	j.setState(StateFailed)
	if _, err := w.deps.Transport.PostMessage(ctx, j.OwnerID, fmt.Sprintf("%s: %s", j.DisplayName, errors.Truncate(cause, 200))); err != nil {
		log.LogError(j.ID, "posting failure message failed", err)
	}
}

func (w *Worker) finishCancelled(ctx context.Context, j *Job, reporter *progress.Reporter) {
	reporter.Stop()
	j.setState(StateCancelled)
}

func subtitleKindFor(s SubtitleSource) encode.SubtitleKind {
	switch s {
	case SubtitleSourceExternalFile:
		return encode.SubtitleExternal
	case SubtitleSourceEmbeddedAuto:
		return encode.SubtitleEmbedded
	default:
		return encode.SubtitleNone
	}
}
