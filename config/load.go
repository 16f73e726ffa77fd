package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/peterbourgon/ff/v3"
)

// LoadCli parses args (normally os.Args[1:]) plus MIRROBOT_* env vars into
// a Cli, mirroring the teacher's ff.Parse + WithEnvVarPrefix convention in
// main.go.
func LoadCli(fs *flag.FlagSet, args []string) (Cli, error) {
	cli := Cli{}

	fs.Int64Var(&cli.OwnerID, "owner-id", 0, "Telegram user id allowed to run owner-gated commands")
	CommaInt64SliceFlag(fs, &cli.AuthIDs, "auth-ids", nil, "Comma-separated list of additional authorised Telegram user ids")
	fs.IntVar(&cli.LogLevel, "v", 0, "Log verbosity")

	fs.StringVar(&cli.StateDir, "state-dir", "./state", "Directory holding the raw cache registry, history store, templates and auth list")
	fs.StringVar(&cli.CacheDir, "cache-dir", "./state/cache", "Directory subtitle attachments are saved to; downloads and encoded outputs go to -output-dir")
	fs.StringVar(&cli.ManualDropDir, "manual-drop-dir", "./state/drop", "Directory watched for files dropped in manually, adopted into the raw cache whenever the cache is listed")
	fs.StringVar(&cli.OutputDir, "output-dir", "./state/output", "Directory encoded outputs are written to before fan-out upload")

	fs.DurationVar(&cli.DownloadTimeout, "download-timeout", DefaultDownloadTimeout, "Stored in Cli.DownloadTimeout and not read elsewhere; downloads always run under config.DefaultDownloadTimeout")
	fs.DurationVar(&cli.ProgressTickInterval, "progress-tick-interval", ProgressTickInterval, "Stored in Cli.ProgressTickInterval and not read elsewhere; the Progress Reporter always ticks every config.ProgressTickInterval")

	InvertedBoolFlag(fs, &cli.WatermarkEnabled, "watermark", true, "Stored in Cli.WatermarkEnabled and not read elsewhere; the worker encodes without a watermark overlay")
	fs.StringVar(&cli.WatermarkText, "watermark-text", "", "Stored in Cli.WatermarkText and not read elsewhere; the worker passes an empty watermark text to the encoder")
	fs.IntVar(&cli.WatermarkDurationSecs, "watermark-duration", int(WatermarkDuration/time.Second), "Stored in Cli.WatermarkDurationSecs and not read elsewhere; the encoder's watermark filter uses config.WatermarkDuration")

	fs.IntVar(&cli.MetricsPort, "metrics-port", 9935, "Port to serve /metrics on")

	fs.IntVar(&cli.TelegramAPIID, "telegram-api-id", 0, "Telegram application api_id (my.telegram.org)")
	fs.StringVar(&cli.TelegramAPIHash, "telegram-api-hash", "", "Telegram application api_hash")
	fs.StringVar(&cli.TelegramBotToken, "telegram-bot-token", "", "Bot token issued by @BotFather")
	fs.StringVar(&cli.TelegramSessionPath, "telegram-session-path", "./state/session.db", "Path to the gotgproto session database")

	hostFlags(fs, &cli.Hosts.Seedbox, "seedbox")
	hostFlags(fs, &cli.Hosts.Drive, "drive")
	hostFlags(fs, &cli.Hosts.Mirror, "mirror")
	hostFlags(fs, &cli.Hosts.OneClick, "oneclick")
	hostFlags(fs, &cli.Hosts.GeneralFile, "generalfile")
	hostFlags(fs, &cli.Hosts.FilePress, "filepress")
	hostFlags(fs, &cli.Hosts.Abyss, "abyss")
	hostFlags(fs, &cli.Hosts.TurboVid, "turbovid")
	hostFlags(fs, &cli.Hosts.VidHide, "vidhide")

	_ = fs.String("config", "", "path to a plain key=value config file (optional)")

	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("MIRROBOT"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err != nil {
		return Cli{}, fmt.Errorf("config: parsing flags: %w", err)
	}
	if cli.TelegramAPIID == 0 || cli.TelegramAPIHash == "" || cli.TelegramBotToken == "" {
		return Cli{}, fmt.Errorf("config: -telegram-api-id, -telegram-api-hash and -telegram-bot-token are required")
	}
	return cli, nil
}

func hostFlags(fs *flag.FlagSet, h *HostConfig, name string) {
	InvertedBoolFlag(fs, &h.Enabled, name, true, fmt.Sprintf("Disable the %s upload host", name))
	URLVarFlag(fs, &h.BaseURL, name+"-base-url", "", fmt.Sprintf("Base URL for the %s upload host", name))
	fs.StringVar(&h.APIKey, name+"-api-key", "", fmt.Sprintf("API key for the %s upload host", name))
}

// Hostname is a small convenience used by cmd/mirrobot to label log lines;
// kept here rather than in cmd so config stays the single place that
// reaches into the OS for process identity.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
