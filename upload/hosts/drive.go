package hosts

import (
	"context"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// Drive is the cloud-drive sink that FilePress and Abyss source from.
type Drive struct{ base }

func NewDrive(cfg config.HostConfig) *Drive {
	return &Drive{base{name: "Drive", cfg: cfg}}
}

func (d *Drive) Upload(ctx context.Context, localPath string, _ map[string]string) (string, error) {
	if !d.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	client := newClient(5)
	data, err := multipartUploadFile(ctx, client, d.cfg.BaseURL.String()+"/upload", "file", localPath, map[string]string{
		"api_key": d.cfg.APIKey,
	}, d.name)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
