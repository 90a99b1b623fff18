package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Environment variable names
const (
	// EnvDataDir overrides the XDG data directory for appsweep
	EnvDataDir = "APPSWEEP_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for appsweep
	EnvConfigDir = "APPSWEEP_CONFIG_DIR"

	// EnvCacheDir overrides the XDG cache directory for appsweep
	EnvCacheDir = "APPSWEEP_CACHE_DIR"

	// EnvStateDir overrides the XDG state directory for appsweep
	EnvStateDir = "APPSWEEP_STATE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Fixed names inside the appsweep directories. Not user-configurable.
const (
	AppDirName       = "appsweep"
	ConfigFileName   = "config.toml"
	LogFileName      = "appsweep.log"
	HistoryDBName    = "history.db"
	CaskCatalogName  = "cask.json"
	ScheduleFileName = "schedule.yaml"
	LaunchAgentLabel = "com.appsweep.autoupdate"
)

// Paths resolves every on-disk location appsweep uses.
type Paths interface {
	ConfigDir() string
	ConfigFile() string
	CacheDir() string
	DataDir() string
	StateDir() string
	LogFilePath() string
	HistoryDBPath() string
	CaskCatalogPath() string
	ScheduleFilePath() string
	LaunchAgentsDir() string
	LaunchAgentPath() string
	TempDir() string
}

type paths struct {
	config string
	cache  string
	data   string
	state  string
	home   string
}

// New creates a Paths instance, respecting environment overrides.
func New() Paths {
	home, _ := os.UserHomeDir()
	p := &paths{home: home}

	p.config = fromEnv(EnvConfigDir, filepath.Join(xdg.ConfigHome, AppDirName))
	p.cache = fromEnv(EnvCacheDir, filepath.Join(xdg.CacheHome, AppDirName))
	p.data = fromEnv(EnvDataDir, filepath.Join(xdg.DataHome, AppDirName))
	p.state = fromEnv(EnvStateDir, filepath.Join(xdg.StateHome, AppDirName))

	return p
}

func fromEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return ExpandHome(v)
	}
	return fallback
}

func (p *paths) ConfigDir() string       { return p.config }
func (p *paths) ConfigFile() string      { return filepath.Join(p.config, ConfigFileName) }
func (p *paths) CacheDir() string        { return p.cache }
func (p *paths) DataDir() string         { return p.data }
func (p *paths) StateDir() string        { return p.state }
func (p *paths) LogFilePath() string     { return filepath.Join(p.state, LogFileName) }
func (p *paths) HistoryDBPath() string   { return filepath.Join(p.data, HistoryDBName) }
func (p *paths) CaskCatalogPath() string { return filepath.Join(p.cache, CaskCatalogName) }
func (p *paths) ScheduleFilePath() string {
	return filepath.Join(p.data, ScheduleFileName)
}

// LaunchAgentsDir is the per-user launchd agent directory.
func (p *paths) LaunchAgentsDir() string {
	return filepath.Join(p.home, "Library", "LaunchAgents")
}

func (p *paths) LaunchAgentPath() string {
	return filepath.Join(p.LaunchAgentsDir(), LaunchAgentLabel+".plist")
}

// TempDir is the parent of per-operation working directories.
func (p *paths) TempDir() string {
	return filepath.Join(os.TempDir(), AppDirName)
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv(EnvHome)
		if homeDir == "" {
			return path
		}
	}

	if len(path) == 1 {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ExpandAll expands ~ in every entry.
func ExpandAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, ExpandHome(p))
	}
	return out
}
