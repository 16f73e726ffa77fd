package job

import (
	"sync"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/upload"
)

// Phase is the active job's current pipeline stage (spec.md §3).
type Phase string

const (
	PhaseDownload   Phase = "download"
	PhaseEncode     Phase = "encode"
	PhaseUpload     Phase = "upload"
	PhaseFinalizing Phase = "finalizing"
)

// DownloadStatus mirrors the Downloader's Progress; the phase itself is
// kept on Dashboard.Phase.
type DownloadStatus struct {
	Percent float64
	Total   string
	Speed   string
	ETA     string
}

// EncodeStatus is one resolution's row in the dashboard.
type EncodeStatus struct {
	Status  string
	Percent float64
}

// Dashboard is the mutable, concurrently-written-but-disjointly-keyed
// snapshot spec.md §9 describes: each phase (or fanout) owns its own
// keys, so no shared lock is needed across writers — only within a
// single field's read/write pair. This mirrors the "atomic sub-structs
// per host/resolution" suggestion in spec.md's Design Notes rather than
// the teacher's single coarse mutex in pipeline.JobInfo.
type Dashboard struct {
	Filename string
	Kind     Kind
	Phase    Phase

	downloadMu sync.Mutex
	download   DownloadStatus

	encodeMu sync.Mutex
	encode   map[config.Resolution]EncodeStatus

	uploadMu sync.Mutex
	upload   map[config.Resolution]upload.Snapshot
}

func newDashboard() *Dashboard {
	return &Dashboard{
		encode: map[config.Resolution]EncodeStatus{},
		upload: map[config.Resolution]upload.Snapshot{},
	}
}

func (d *Dashboard) SetDownload(s DownloadStatus) {
	d.downloadMu.Lock()
	defer d.downloadMu.Unlock()
	d.download = s
}

func (d *Dashboard) Download() DownloadStatus {
	d.downloadMu.Lock()
	defer d.downloadMu.Unlock()
	return d.download
}

func (d *Dashboard) SetEncode(r config.Resolution, s EncodeStatus) {
	d.encodeMu.Lock()
	defer d.encodeMu.Unlock()
	d.encode[r] = s
}

func (d *Dashboard) EncodeSnapshot() map[config.Resolution]EncodeStatus {
	d.encodeMu.Lock()
	defer d.encodeMu.Unlock()
	out := make(map[config.Resolution]EncodeStatus, len(d.encode))
	for k, v := range d.encode {
		out[k] = v
	}
	return out
}

func (d *Dashboard) SetUpload(r config.Resolution, s upload.Snapshot) {
	d.uploadMu.Lock()
	defer d.uploadMu.Unlock()
	d.upload[r] = s
}

func (d *Dashboard) UploadSnapshot() map[config.Resolution]upload.Snapshot {
	d.uploadMu.Lock()
	defer d.uploadMu.Unlock()
	out := make(map[config.Resolution]upload.Snapshot, len(d.upload))
	for k, v := range d.upload {
		out[k] = v
	}
	return out
}
