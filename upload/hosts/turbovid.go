package hosts

import (
	"context"
	"net/url"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// TurboVid is a video embed host sourced from Seedbox; it depends on
// Seedbox's URL and is gated to 1080p only (spec.md §4.4).
type TurboVid struct{ base }

func NewTurboVid(cfg config.HostConfig) *TurboVid {
	return &TurboVid{base{name: "TurboVid", cfg: cfg, deps: []string{"Seedbox"}, embedOnly: true}}
}

func (t *TurboVid) Upload(ctx context.Context, _ string, in map[string]string) (string, error) {
	if !t.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	seedboxURL := in["Seedbox"]
	form := url.Values{"url": {seedboxURL}, "api_key": {t.cfg.APIKey}}
	data, err := remoteIngest(ctx, newClient(3), t.cfg.BaseURL.String()+"/embed", form)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
