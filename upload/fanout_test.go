package upload

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	name      string
	deps      []string
	embedOnly bool
	delay     time.Duration
	fail      bool
	disabled  bool
}

func (f *fakeHost) Name() string                      { return f.name }
func (f *fakeHost) DependsOn() []string               { return f.deps }
func (f *fakeHost) RequiresResolution1080pOnly() bool { return f.embedOnly }

func (f *fakeHost) Upload(ctx context.Context, localPath string, in map[string]string) (string, error) {
	if f.disabled {
		return "", errors.ErrHostDisabled
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return "", fmt.Errorf("boom")
	}
	return "https://host/" + f.name, nil
}

func TestFanoutIndependentHostsSucceed(t *testing.T) {
	h1 := &fakeHost{name: "Seedbox"}
	h2 := &fakeHost{name: "Mirror"}
	f := New(context.Background(), "job1", []Host{h1, h2}, config.Res720p, "/tmp/out.mp4")
	snap := f.Wait()
	require.Equal(t, StatusSuccess, snap["Seedbox"].Status)
	require.Equal(t, StatusSuccess, snap["Mirror"].Status)
}

func TestFanoutDependentAwaitsDependencyURL(t *testing.T) {
	drive := &fakeHost{name: "Drive", delay: 20 * time.Millisecond}
	filepress := &fakeHost{name: "FilePress", deps: []string{"Drive"}}
	f := New(context.Background(), "job1", []Host{drive, filepress}, config.Res720p, "/tmp/out.mp4")
	snap := f.Wait()
	require.Equal(t, StatusSuccess, snap["Drive"].Status)
	require.Equal(t, StatusSuccess, snap["FilePress"].Status)
}

func TestFanoutDependencyFailurePropagatesAsSkipped(t *testing.T) {
	drive := &fakeHost{name: "Drive", fail: true}
	abyss := &fakeHost{name: "Abyss", deps: []string{"Drive"}, embedOnly: true}
	f := New(context.Background(), "job1", []Host{drive, abyss}, config.Res1080p, "/tmp/out.mp4")
	snap := f.Wait()
	require.Equal(t, StatusFailed, snap["Drive"].Status)
	require.Equal(t, StatusSkippedDependencyFailed, snap["Abyss"].Status)
}

func TestFanoutEmbedHostSkippedBelow1080p(t *testing.T) {
	seedbox := &fakeHost{name: "Seedbox"}
	turbovid := &fakeHost{name: "TurboVid", deps: []string{"Seedbox"}, embedOnly: true}
	f := New(context.Background(), "job1", []Host{seedbox, turbovid}, config.Res720p, "/tmp/out.mp4")
	snap := f.Wait()
	require.Equal(t, StatusSkipped, snap["TurboVid"].Status)
}

func TestFanoutDisabledHostSkipped(t *testing.T) {
	h := &fakeHost{name: "Mirror", disabled: true}
	f := New(context.Background(), "job1", []Host{h}, config.Res720p, "/tmp/out.mp4")
	snap := f.Wait()
	require.Equal(t, StatusSkipped, snap["Mirror"].Status)
}

func TestFanoutNoHostLeftPending(t *testing.T) {
	hostsList := []Host{
		&fakeHost{name: "Seedbox"},
		&fakeHost{name: "Drive", fail: true},
		&fakeHost{name: "FilePress", deps: []string{"Drive"}},
		&fakeHost{name: "TurboVid", deps: []string{"Seedbox"}, embedOnly: true},
	}
	f := New(context.Background(), "job1", hostsList, config.Res1080p, "/tmp/out.mp4")
	snap := f.Wait()
	for _, h := range hostsList {
		require.True(t, snap[h.Name()].Status.Terminal(), "%s left non-terminal", h.Name())
	}
}
