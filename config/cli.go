package config

import (
	"net/url"
	"time"
)

// HostConfig is the per-host toggle block described in spec.md §3: a
// disabled host always reports status `skipped` without attempting a
// network call.
type HostConfig struct {
	Enabled bool
	BaseURL *url.URL
	APIKey  string
}

// HostsConfig holds the configuration block for all nine upload sinks of
// spec.md §4.4.
type HostsConfig struct {
	Seedbox     HostConfig
	Drive       HostConfig
	Mirror      HostConfig
	OneClick    HostConfig
	GeneralFile HostConfig
	FilePress   HostConfig
	Abyss       HostConfig
	TurboVid    HostConfig
	VidHide     HostConfig
}

// Cli is the fully parsed command-line/env/file configuration for the
// mirrobot process, populated by ff.Parse in cmd/mirrobot.
type Cli struct {
	OwnerID  int64
	AuthIDs  []int64
	LogLevel int

	StateDir      string
	CacheDir      string
	ManualDropDir string
	OutputDir     string

	DownloadTimeout      time.Duration
	ProgressTickInterval time.Duration

	WatermarkEnabled      bool
	WatermarkText         string
	WatermarkDurationSecs int

	MetricsPort int

	TelegramAPIID       int
	TelegramAPIHash     string
	TelegramBotToken    string
	TelegramSessionPath string

	Hosts HostsConfig
}
