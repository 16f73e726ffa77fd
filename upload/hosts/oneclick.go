package hosts

import (
	"context"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// OneClick is a one-click host, independent of Seedbox and Drive.
type OneClick struct{ base }

func NewOneClick(cfg config.HostConfig) *OneClick {
	return &OneClick{base{name: "OneClick", cfg: cfg}}
}

func (o *OneClick) Upload(ctx context.Context, localPath string, _ map[string]string) (string, error) {
	if !o.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	client := newClient(3)
	data, err := multipartUploadFile(ctx, client, o.cfg.BaseURL.String()+"/upload", "file", localPath, map[string]string{
		"api_key": o.cfg.APIKey,
	}, o.name)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
