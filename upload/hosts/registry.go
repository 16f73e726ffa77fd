package hosts

import (
	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/upload"
)

// Order is the canonical host display order used by the Progress
// Reporter and link-report rendering.
var Order = []string{
	"Seedbox", "Drive", "Mirror", "OneClick", "GeneralFile",
	"FilePress", "Abyss", "TurboVid", "VidHide",
}

// All constructs every configured host, in Order, ready to hand to
// upload.New. Hosts are always constructed regardless of their Enabled
// flag — a disabled host still participates in the fanout so it reports
// `skipped` rather than being silently absent from the status map.
func All(cfg config.HostsConfig) []upload.Host {
	return []upload.Host{
		NewSeedbox(cfg.Seedbox),
		NewDrive(cfg.Drive),
		NewMirror(cfg.Mirror),
		NewOneClick(cfg.OneClick),
		NewGeneralFile(cfg.GeneralFile),
		NewFilePress(cfg.FilePress),
		NewAbyss(cfg.Abyss),
		NewTurboVid(cfg.TurboVid),
		NewVidHide(cfg.VidHide),
	}
}

// Subset returns the named hosts, in Order, for the direct-upload commands
// (convert, fp, up). Dependencies between the chosen hosts still apply:
// FilePress in the fp subset awaits Drive.
func Subset(cfg config.HostsConfig, names ...string) []upload.Host {
	all := All(cfg)
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []upload.Host
	for _, h := range all {
		if wanted[h.Name()] {
			out = append(out, h)
		}
	}
	return out
}
