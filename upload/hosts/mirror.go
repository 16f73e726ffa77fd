package hosts

import (
	"context"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// Mirror is a mirror-aggregator host, independent of Seedbox and Drive.
type Mirror struct{ base }

func NewMirror(cfg config.HostConfig) *Mirror {
	return &Mirror{base{name: "Mirror", cfg: cfg}}
}

func (m *Mirror) Upload(ctx context.Context, localPath string, _ map[string]string) (string, error) {
	if !m.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	client := newClient(3)
	data, err := multipartUploadFile(ctx, client, m.cfg.BaseURL.String()+"/upload", "file", localPath, map[string]string{
		"api_key": m.cfg.APIKey,
	}, m.name)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
