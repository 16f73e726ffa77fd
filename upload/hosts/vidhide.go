package hosts

import (
	"context"
	"net/url"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// VidHide is a download/embed host sourced from Seedbox; it depends on
// Seedbox's URL and is gated to 1080p only (spec.md §4.4, glossary "Embed
// host").
type VidHide struct{ base }

func NewVidHide(cfg config.HostConfig) *VidHide {
	return &VidHide{base{name: "VidHide", cfg: cfg, deps: []string{"Seedbox"}, embedOnly: true}}
}

func (v *VidHide) Upload(ctx context.Context, _ string, in map[string]string) (string, error) {
	if !v.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	seedboxURL := in["Seedbox"]
	form := url.Values{"url": {seedboxURL}, "api_key": {v.cfg.APIKey}}
	data, err := remoteIngest(ctx, newClient(3), v.cfg.BaseURL.String()+"/embed", form)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
