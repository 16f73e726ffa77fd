package hosts

import (
	"context"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// Seedbox is the local file-browser share: an authoritative HTTP source
// for the remote-ingest hosts (TurboVid, VidHide) that depend on it.
type Seedbox struct{ base }

func NewSeedbox(cfg config.HostConfig) *Seedbox {
	return &Seedbox{base{name: "Seedbox", cfg: cfg}}
}

func (s *Seedbox) Upload(ctx context.Context, localPath string, _ map[string]string) (string, error) {
	if !s.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	client := newClient(5)
	data, err := multipartUploadFile(ctx, client, s.cfg.BaseURL.String()+"/upload", "file", localPath, map[string]string{
		"api_key": s.cfg.APIKey,
	}, s.name)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
