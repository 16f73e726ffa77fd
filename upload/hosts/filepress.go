package hosts

import (
	"context"
	"net/url"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// FilePress is a Drive-sourced mirror host: it ingests the file Drive
// already holds rather than receiving the local file directly, so it
// depends on Drive's resolved URL (spec.md §4.4).
//
// The upstream API is documented to try several response-key shapes for
// the resulting URL; per spec.md §9's Open Question this implementation
// pins one shape — a top-level {"url": "..."} object — and treats any
// other shape as upload-failed(FilePress) rather than silently skipping.
type FilePress struct{ base }

func NewFilePress(cfg config.HostConfig) *FilePress {
	return &FilePress{base{name: "FilePress", cfg: cfg, deps: []string{"Drive"}}}
}

func (f *FilePress) Upload(ctx context.Context, _ string, in map[string]string) (string, error) {
	if !f.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	driveURL := in["Drive"]
	form := url.Values{"url": {driveURL}, "api_key": {f.cfg.APIKey}}
	data, err := remoteIngest(ctx, newClient(3), f.cfg.BaseURL.String()+"/mirror", form)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
