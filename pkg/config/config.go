package config

import "time"

// Config is the typed view of the layered configuration.
type Config struct {
	Updates  UpdatesConfig  `koanf:"updates"`
	Homebrew HomebrewConfig `koanf:"homebrew"`
	AppStore AppStoreConfig `koanf:"appstore"`
	Sparkle  SparkleConfig  `koanf:"sparkle"`
	Sideload SideloadConfig `koanf:"sideload"`
	HTTP     HTTPConfig     `koanf:"http"`
	History  HistoryConfig  `koanf:"history"`
	Schedule ScheduleConfig `koanf:"schedule"`
}

// UpdatesConfig holds the cross-source update policy.
type UpdatesConfig struct {
	IncludePrereleases bool `koanf:"include_prereleases"`
	// Casks whose apps update themselves are left to the Sparkle checker.
	SparkleForAutoUpdatingCasks bool   `koanf:"sparkle_for_auto_updating_casks"`
	IncludeFormulae             bool   `koanf:"include_formulae"`
	SparkleCheckMode            string `koanf:"sparkle_check_mode"` // "full" or "light"
	SparkleApplyMode            string `koanf:"sparkle_apply_mode"` // "open" or "inprocess"
}

type HomebrewConfig struct {
	Prefix         string `koanf:"prefix"`
	APIURL         string `koanf:"api_url"`
	APIConcurrency int    `koanf:"api_concurrency"`
	BrewPath       string `koanf:"brew_path"`
}

type AppStoreConfig struct {
	LookupURL    string        `koanf:"lookup_url"`
	Country      string        `koanf:"country"`
	IndexTimeout time.Duration `koanf:"index_timeout"`
	SearchDirs   []string      `koanf:"search_dirs"`
	DownloadTool string        `koanf:"download_tool"`
	ArchiveTool  string        `koanf:"archive_tool"`
}

type SparkleConfig struct {
	FallbackFeedTemplate string `koanf:"fallback_feed_template"`
	QueueLimit           int    `koanf:"queue_limit"`
}

type SideloadConfig struct {
	ExtractTool string `koanf:"extract_tool"`
	Owner       string `koanf:"owner"`
	Mode        string `koanf:"mode"`
	Privilege   string `koanf:"privilege"` // "sudo", "applescript" or "none"
}

type HTTPConfig struct {
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`
}

type HistoryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type ScheduleConfig struct {
	Command string `koanf:"command"`
}

// Sparkle modes
const (
	SparkleCheckFull      = "full"
	SparkleCheckLight     = "light"
	SparkleApplyOpen      = "open"
	SparkleApplyInProcess = "inprocess"
)

// MaxSparkleOperations caps concurrent in-process Sparkle installs.
const MaxSparkleOperations = 3
