package hosts

import (
	"context"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// GeneralFile is a general-purpose file host, independent of Seedbox and
// Drive.
type GeneralFile struct{ base }

func NewGeneralFile(cfg config.HostConfig) *GeneralFile {
	return &GeneralFile{base{name: "GeneralFile", cfg: cfg}}
}

func (g *GeneralFile) Upload(ctx context.Context, localPath string, _ map[string]string) (string, error) {
	if !g.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	client := newClient(3)
	data, err := multipartUploadFile(ctx, client, g.cfg.BaseURL.String()+"/upload", "file", localPath, map[string]string{
		"api_key": g.cfg.APIKey,
	}, g.name)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
