package job

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mirrobot/mirrobot/cachestore"
	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/download"
	"github.com/mirrobot/mirrobot/encode"
	"github.com/mirrobot/mirrobot/errors"
	"github.com/mirrobot/mirrobot/history"
	"github.com/mirrobot/mirrobot/suspend"
	"github.com/stretchr/testify/require"
)

// fakeDownloader writes a small file to destPath and reports one progress
// tick, unless configured to fail.
type fakeDownloader struct {
	err error
}

func (f *fakeDownloader) Download(ctx context.Context, src, destPath string, onProgress download.OnProgress) error {
	if f.err != nil {
		return f.err
	}
	onProgress(download.Progress{Percent: 100, Total: "1 KB"})
	return os.WriteFile(destPath, []byte("video-bytes"), 0o644)
}

// fakeEncoder reports success for every resolution unless told to fail at
// a specific one, or to raise errors.ErrNoSubtitle.
type fakeEncoder struct {
	mu        sync.Mutex
	failAt    config.Resolution
	failErr   error
	encoded   []config.Resolution
}

func (f *fakeEncoder) Duration(ctx context.Context, input string) (time.Duration, error) {
	return 10 * time.Minute, nil
}

func (f *fakeEncoder) Probe(ctx context.Context, input string) (encode.Metadata, error) {
	return encode.Metadata{Width: 1920, Height: 1080, Duration: 10 * time.Minute}, nil
}

func (f *fakeEncoder) Encode(ctx context.Context, input, outputPath string, resolution config.Resolution, crf int, r encode.Recipe, duration time.Duration, onProgress encode.OnProgress) error {
	if resolution == f.failAt && f.failErr != nil {
		return f.failErr
	}
	onProgress(encode.Progress{Percent: 100})
	f.mu.Lock()
	f.encoded = append(f.encoded, resolution)
	f.mu.Unlock()
	return os.WriteFile(outputPath, []byte("encoded-bytes"), 0o644)
}

// fakeTransport records every posted/edited/deleted message in memory.
type fakeTransport struct {
	mu       sync.Mutex
	posted   []string
	videos   []string
	deleted  int
	nextID   int
}

func (t *fakeTransport) PostMessage(ctx context.Context, ownerID int64, text string) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.posted = append(t.posted, text)
	t.nextID++
	return t.nextID, nil
}

func (t *fakeTransport) EditMessage(ctx context.Context, handle interface{}, text string) error {
	return nil
}

func (t *fakeTransport) DeleteMessage(ctx context.Context, handle interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted++
	return nil
}

func (t *fakeTransport) PostVideo(ctx context.Context, ownerID int64, path string, width, height int, duration time.Duration, caption string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.videos = append(t.videos, path)
	return nil
}

func (t *fakeTransport) lastPosted() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.posted) == 0 {
		return ""
	}
	return t.posted[len(t.posted)-1]
}

func newTestWorker(t *testing.T, dl Downloader, enc Encoder, transport ChatTransport) (*Worker, *Queue, string) {
	t.Helper()
	dir := t.TempDir()

	cache, err := cachestore.Open(filepath.Join(dir, "cache.json"), filepath.Join(dir, "drop"))
	require.NoError(t, err)
	hist, err := history.Open(filepath.Join(dir, "history.json"))
	require.NoError(t, err)

	q := NewQueue()
	w := NewWorker(q, Dependencies{
		Downloader: dl,
		Encoder:    enc,
		Cache:      cache,
		Suspend:    suspend.New(),
		History:    hist,
		Hosts:      config.HostsConfig{},
		Transport:  transport,
		WorkDir:    dir,
	})
	return w, q, dir
}

func TestWorkerRunsEncodeJobToCompletion(t *testing.T) {
	enc := &fakeEncoder{}
	transport := &fakeTransport{}
	w, q, _ := newTestWorker(t, &fakeDownloader{}, enc, transport)

	j := New("job-1", 1, KindEncode, "https://example.com/video.mp4")
	j.DisplayName = "Some.Show.S01E02.mp4"
	j.Resolutions = []config.Resolution{config.Res720p, config.Res1080p}
	j.CRF[config.Res720p] = 23
	j.CRF[config.Res1080p] = 21
	q.Submit(j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return j.State() == StateDone }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		enc.mu.Lock()
		defer enc.mu.Unlock()
		return len(enc.encoded) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWorkerSuspendsOnNoSubtitleAndResumes(t *testing.T) {
	enc := &fakeEncoder{failAt: config.Res720p, failErr: errors.ErrNoSubtitle}
	transport := &fakeTransport{}
	w, q, _ := newTestWorker(t, &fakeDownloader{}, enc, transport)

	j := New("job-2", 7, KindEncode, "https://example.com/video2.mp4")
	j.DisplayName = "NeedsSubs.mp4"
	j.Resolutions = []config.Resolution{config.Res720p}
	j.CRF[config.Res720p] = 23
	q.Submit(j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return j.State() == StateSuspended }, 2*time.Second, 5*time.Millisecond)
	require.NotEmpty(t, j.CacheID)

	enc.mu.Lock()
	enc.failErr = nil
	enc.mu.Unlock()

	ok := w.Resume("/tmp/some.srt", 7)
	require.True(t, ok)
	require.Equal(t, StateQueued, j.State())
	require.Equal(t, SubtitleSourceExternalFile, j.SubtitleKind)

	require.Eventually(t, func() bool { return j.State() == StateDone }, 2*time.Second, 5*time.Millisecond)
}

func TestWorkerCancelMarksJobCancelled(t *testing.T) {
	block := make(chan struct{})
	enc := &fakeEncoder{}
	dl := &fakeDownloader{}
	transport := &fakeTransport{}
	w, q, _ := newTestWorker(t, dl, enc, transport)

	// Replace the encoder with one that blocks until the test cancels the
	// job, so there is a window to call Cancel mid-pipeline.
	blockingEncoder := &blockingTestEncoder{fakeEncoder: enc, block: block}
	w.deps.Encoder = blockingEncoder

	j := New("job-3", 9, KindEncode, "https://example.com/video3.mp4")
	j.DisplayName = "Cancel.Me.mp4"
	j.Resolutions = []config.Resolution{config.Res720p}
	j.CRF[config.Res720p] = 23
	q.Submit(j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return w.Running() != nil }, time.Second, 2*time.Millisecond)
	w.Cancel(9)
	close(block)

	require.Eventually(t, func() bool { return j.State() == StateCancelled }, 2*time.Second, 5*time.Millisecond)
}

// blockingTestEncoder waits on a channel before delegating to the
// embedded fakeEncoder, simulating an in-flight encode during which a
// cancellation request can land.
type blockingTestEncoder struct {
	*fakeEncoder
	block chan struct{}
}

func (b *blockingTestEncoder) Encode(ctx context.Context, input, outputPath string, resolution config.Resolution, crf int, r encode.Recipe, duration time.Duration, onProgress encode.OnProgress) error {
	select {
	case <-b.block:
	case <-ctx.Done():
		return errors.Unretriable(errors.ErrCancelled)
	}
	if ctx.Err() != nil {
		return errors.Unretriable(errors.ErrCancelled)
	}
	return b.fakeEncoder.Encode(ctx, input, outputPath, resolution, crf, r, duration, onProgress)
}

func TestWorkerLeechPostsVideoDirectly(t *testing.T) {
	enc := &fakeEncoder{}
	transport := &fakeTransport{}
	w, q, _ := newTestWorker(t, &fakeDownloader{}, enc, transport)

	j := New("job-4", 3, KindLeech, "https://example.com/clip.mp4")
	j.DisplayName = "clip.mp4"
	q.Submit(j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return j.State() == StateDone }, 2*time.Second, 5*time.Millisecond)
	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.videos, 1)
}

func TestWorkerDirectUploadPipelines(t *testing.T) {
	for _, kind := range []Kind{KindConvert, KindMirror, KindMultiHost} {
		enc := &fakeEncoder{}
		transport := &fakeTransport{}
		w, q, _ := newTestWorker(t, &fakeDownloader{}, enc, transport)

		j := New("job-direct-"+string(kind), 5, kind, "https://example.com/direct.mp4")
		j.DisplayName = "direct.mp4"
		q.Submit(j)

		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)

		require.Eventually(t, func() bool { return j.State() == StateDone }, 2*time.Second, 5*time.Millisecond)
		cancel()
	}
}

func TestWorkerEmitsBatchSummaryAfterQueueDrains(t *testing.T) {
	enc := &fakeEncoder{}
	transport := &fakeTransport{}
	w, q, _ := newTestWorker(t, &fakeDownloader{}, enc, transport)

	for i := 0; i < 2; i++ {
		j := New("batch-job", 11, KindLeech, "https://example.com/b.mp4")
		j.DisplayName = "b.mp4"
		q.Submit(j)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return strings.Contains(transport.lastPosted(), "batch complete")
	}, 3*time.Second, 5*time.Millisecond)
}
