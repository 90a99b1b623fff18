package homebrew

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
)

// InstalledPackage is a cask or formula found under the Homebrew prefix.
type InstalledPackage struct {
	Name               string
	DisplayName        string
	Description        string
	Version            string
	IsCask             bool
	IsPinned           bool
	Tap                string
	InstalledOnRequest bool
	AutoUpdates        bool
	// Artifacts lists the .app names a cask installs
	Artifacts []string
}

// OutdatedPackage pairs an installed package with a newer available version.
type OutdatedPackage struct {
	Name             string
	InstalledVersion string
	AvailableVersion string
	IsCask           bool
}

// Cask is the subset of the formulae.brew.sh cask JSON used here.
type Cask struct {
	Token       string     `json:"token"`
	FullToken   string     `json:"full_token"`
	Tap         string     `json:"tap"`
	Name        []string   `json:"name"`
	Description string     `json:"desc"`
	Homepage    string     `json:"homepage"`
	Version     string     `json:"version"`
	AutoUpdates bool       `json:"auto_updates"`
	Deprecated  bool       `json:"deprecated"`
	Disabled    bool       `json:"disabled"`
	Artifacts   []Artifact `json:"artifacts"`
}

// Artifact is one entry of a cask's artifacts list, keyed by stanza
// ("app", "binary", "zap", ...).
type Artifact map[string]json.RawMessage

// AppArtifacts returns the .app bundle names the cask installs. Renamed
// apps ({"target": "..."}) report their target name.
func (c Cask) AppArtifacts() []string {
	var apps []string
	for _, a := range c.Artifacts {
		raw, ok := a["app"]
		if !ok {
			continue
		}
		var items []interface{}
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}
		for _, item := range items {
			switch v := item.(type) {
			case string:
				apps = append(apps, filepath.Base(v))
			case map[string]interface{}:
				if target, ok := v["target"].(string); ok {
					apps = append(apps, filepath.Base(target))
				}
			}
		}
	}
	return apps
}

// DisplayName returns the first human name of the cask.
func (c Cask) DisplayName() string {
	if len(c.Name) > 0 {
		return c.Name[0]
	}
	return c.Token
}

// Formula is the subset of the formulae.brew.sh formula JSON used here.
type Formula struct {
	Name        string `json:"name"`
	Tap         string `json:"tap"`
	Description string `json:"desc"`
	Versions    struct {
		Stable string `json:"stable"`
	} `json:"versions"`
	Revision int `json:"revision"`
}

var revisionSuffix = regexp.MustCompile(`_\d+$`)

// NormalizeVersion keeps the user-facing part of a Homebrew version:
// cask build suffixes (",1234") and formula revisions ("_1") are dropped.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v, _, _ = strings.Cut(v, ",")
	v = revisionSuffix.ReplaceAllString(v, "")
	return strings.TrimPrefix(v, "v")
}

// IsCoreTap reports whether tap is served by the JSON API.
func IsCoreTap(tap string) bool {
	switch tap {
	case "", "homebrew/cask", "homebrew/core":
		return true
	}
	return false
}
