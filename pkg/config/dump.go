package config

import (
	"github.com/pelletier/go-toml/v2"
)

type dumpConfig struct {
	Updates struct {
		IncludePrereleases          bool   `toml:"include_prereleases"`
		SparkleForAutoUpdatingCasks bool   `toml:"sparkle_for_auto_updating_casks"`
		IncludeFormulae             bool   `toml:"include_formulae"`
		SparkleCheckMode            string `toml:"sparkle_check_mode"`
		SparkleApplyMode            string `toml:"sparkle_apply_mode"`
	} `toml:"updates"`
	Homebrew struct {
		Prefix         string `toml:"prefix"`
		APIURL         string `toml:"api_url"`
		APIConcurrency int    `toml:"api_concurrency"`
		BrewPath       string `toml:"brew_path"`
	} `toml:"homebrew"`
	AppStore struct {
		LookupURL    string   `toml:"lookup_url"`
		Country      string   `toml:"country"`
		IndexTimeout string   `toml:"index_timeout"`
		SearchDirs   []string `toml:"search_dirs"`
		DownloadTool string   `toml:"download_tool"`
		ArchiveTool  string   `toml:"archive_tool"`
	} `toml:"appstore"`
	Sparkle struct {
		FallbackFeedTemplate string `toml:"fallback_feed_template"`
		QueueLimit           int    `toml:"queue_limit"`
	} `toml:"sparkle"`
	Sideload struct {
		ExtractTool string `toml:"extract_tool"`
		Owner       string `toml:"owner"`
		Mode        string `toml:"mode"`
		Privilege   string `toml:"privilege"`
	} `toml:"sideload"`
	HTTP struct {
		Timeout   string `toml:"timeout"`
		UserAgent string `toml:"user_agent"`
	} `toml:"http"`
	History struct {
		Enabled bool `toml:"enabled"`
	} `toml:"history"`
	Schedule struct {
		Command string `toml:"command"`
	} `toml:"schedule"`
}

// Dump renders the effective configuration as TOML.
func Dump(cfg *Config) ([]byte, error) {
	var d dumpConfig
	d.Updates.IncludePrereleases = cfg.Updates.IncludePrereleases
	d.Updates.SparkleForAutoUpdatingCasks = cfg.Updates.SparkleForAutoUpdatingCasks
	d.Updates.IncludeFormulae = cfg.Updates.IncludeFormulae
	d.Updates.SparkleCheckMode = cfg.Updates.SparkleCheckMode
	d.Updates.SparkleApplyMode = cfg.Updates.SparkleApplyMode

	d.Homebrew.Prefix = cfg.Homebrew.Prefix
	d.Homebrew.APIURL = cfg.Homebrew.APIURL
	d.Homebrew.APIConcurrency = cfg.Homebrew.APIConcurrency
	d.Homebrew.BrewPath = cfg.Homebrew.BrewPath

	d.AppStore.LookupURL = cfg.AppStore.LookupURL
	d.AppStore.Country = cfg.AppStore.Country
	d.AppStore.IndexTimeout = cfg.AppStore.IndexTimeout.String()
	d.AppStore.SearchDirs = cfg.AppStore.SearchDirs
	d.AppStore.DownloadTool = cfg.AppStore.DownloadTool
	d.AppStore.ArchiveTool = cfg.AppStore.ArchiveTool

	d.Sparkle.FallbackFeedTemplate = cfg.Sparkle.FallbackFeedTemplate
	d.Sparkle.QueueLimit = cfg.Sparkle.QueueLimit

	d.Sideload.ExtractTool = cfg.Sideload.ExtractTool
	d.Sideload.Owner = cfg.Sideload.Owner
	d.Sideload.Mode = cfg.Sideload.Mode
	d.Sideload.Privilege = cfg.Sideload.Privilege

	d.HTTP.Timeout = cfg.HTTP.Timeout.String()
	d.HTTP.UserAgent = cfg.HTTP.UserAgent
	d.History.Enabled = cfg.History.Enabled
	d.Schedule.Command = cfg.Schedule.Command

	return toml.Marshal(d)
}
