package hosts

import (
	"context"
	"net/url"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/errors"
)

// Abyss is a video embed host sourced from Drive; it depends on Drive's
// URL and is gated to 1080p only (spec.md §4.4).
type Abyss struct{ base }

func NewAbyss(cfg config.HostConfig) *Abyss {
	return &Abyss{base{name: "Abyss", cfg: cfg, deps: []string{"Drive"}, embedOnly: true}}
}

func (a *Abyss) Upload(ctx context.Context, _ string, in map[string]string) (string, error) {
	if !a.cfg.Enabled {
		return "", errors.ErrHostDisabled
	}
	driveURL := in["Drive"]
	form := url.Values{"url": {driveURL}, "api_key": {a.cfg.APIKey}}
	data, err := remoteIngest(ctx, newClient(3), a.cfg.BaseURL.String()+"/embed", form)
	if err != nil {
		return "", err
	}
	return parseURLResponse(data)
}
