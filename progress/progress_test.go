package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu    sync.Mutex
	edits []string
}

func (f *fakeTransport) PostMessage(ctx context.Context, ownerID int64, text string) (MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return "handle", nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, handle MessageHandle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func (f *fakeTransport) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edits[len(f.edits)-1]
}

func setup(render func() string) (*clock.Mock, *fakeTransport, *Reporter, func()) {
	realClock := Clock
	mock := clock.NewMock()
	Clock = mock

	transport := &fakeTransport{}
	reporter, err := Start(context.Background(), "job-1", transport, 42, render)
	if err != nil {
		panic(err)
	}
	return mock, transport, reporter, func() {
		reporter.Stop()
		Clock = realClock
	}
}

func forward(mock *clock.Mock, duration time.Duration) {
	time.Sleep(1 * time.Millisecond)
	mock.Add(duration)
	time.Sleep(1 * time.Millisecond)
}

func TestStartPostsInitialRender(t *testing.T) {
	mock, transport, _, cleanup := setup(func() string { return "rendered-0" })
	defer cleanup()
	_ = mock

	require.Equal(t, 1, transport.count())
	require.Equal(t, "rendered-0", transport.last())
}

func TestTickEditsMessageEveryInterval(t *testing.T) {
	calls := 0
	mock, transport, _, cleanup := setup(func() string {
		calls++
		return "tick"
	})
	defer cleanup()

	forward(mock, 4*time.Second)
	require.GreaterOrEqual(t, transport.count(), 2)

	forward(mock, 4*time.Second)
	require.GreaterOrEqual(t, transport.count(), 3)
}

func TestStopEndsTickLoop(t *testing.T) {
	mock, transport, reporter, cleanup := setup(func() string { return "tick" })
	defer cleanup()

	reporter.Stop()
	before := transport.count()
	forward(mock, 20*time.Second)
	require.Equal(t, before, transport.count())
}

func TestHandleReturnsPostedMessage(t *testing.T) {
	mock, _, reporter, cleanup := setup(func() string { return "x" })
	defer cleanup()
	_ = mock

	require.Equal(t, "handle", reporter.Handle())
}
