package homebrew

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/version"
)

// Default prefixes, Apple silicon first.
var DefaultPrefixes = []string{"/opt/homebrew", "/usr/local"}

// DetectPrefix returns configured when set, else the first default prefix
// that has a Caskroom or Cellar.
func DetectPrefix(fs afero.Fs, configured string) string {
	if configured != "" {
		return configured
	}
	for _, p := range DefaultPrefixes {
		for _, dir := range []string{"Caskroom", "Cellar"} {
			if ok, _ := afero.DirExists(fs, filepath.Join(p, dir)); ok {
				return p
			}
		}
	}
	return DefaultPrefixes[0]
}

// Scanner enumerates installed packages from the prefix on disk.
type Scanner struct {
	fs     afero.Fs
	prefix string
	logger zerolog.Logger
}

// NewScanner creates a scanner rooted at prefix.
func NewScanner(fs afero.Fs, prefix string) *Scanner {
	return &Scanner{fs: fs, prefix: prefix, logger: logging.GetLogger("homebrew.scanner")}
}

// Prefix returns the Homebrew prefix being scanned.
func (s *Scanner) Prefix() string { return s.prefix }

// Fs exposes the scanned filesystem.
func (s *Scanner) Fs() afero.Fs { return s.fs }

// Scan returns casks followed by formulae.
func (s *Scanner) Scan() []InstalledPackage {
	return append(s.ScanCasks(), s.ScanFormulae()...)
}

type caskMetadata struct {
	Token       string     `json:"token"`
	Name        []string   `json:"name"`
	Description string     `json:"desc"`
	Version     string     `json:"version"`
	Tap         string     `json:"tap"`
	AutoUpdates bool       `json:"auto_updates"`
	Artifacts   []Artifact `json:"artifacts"`
}

// ScanCasks reads <prefix>/Caskroom/<token>/.metadata/<version>/<timestamp>/Casks.
func (s *Scanner) ScanCasks() []InstalledPackage {
	root := filepath.Join(s.prefix, "Caskroom")
	tokens := s.dirNames(root)

	pinned := s.pinned()
	var pkgs []InstalledPackage
	for _, token := range tokens {
		pkg, ok := s.readCask(filepath.Join(root, token), token)
		if !ok {
			continue
		}
		pkg.IsPinned = pinned[token]
		pkgs = append(pkgs, pkg)
	}
	return pkgs
}

func (s *Scanner) readCask(dir, token string) (InstalledPackage, bool) {
	metaRoot := filepath.Join(dir, ".metadata")

	// newest install wins: versions, then timestamps, by name
	var best, bestVersion, bestStamp string
	for _, ver := range s.dirNames(metaRoot) {
		for _, stamp := range s.dirNames(filepath.Join(metaRoot, ver)) {
			if best == "" || stamp > bestStamp {
				best = filepath.Join(metaRoot, ver, stamp, "Casks")
				bestVersion, bestStamp = ver, stamp
			}
		}
	}
	if best == "" {
		s.logger.Debug().Str("cask", token).Msg("No cask metadata, skipping")
		return InstalledPackage{}, false
	}

	pkg := InstalledPackage{
		Name:               token,
		DisplayName:        token,
		Version:            bestVersion,
		IsCask:             true,
		InstalledOnRequest: true,
		Tap:                "homebrew/cask",
	}

	if data, err := afero.ReadFile(s.fs, filepath.Join(best, token+".json")); err == nil {
		var meta caskMetadata
		if err := json.Unmarshal(data, &meta); err == nil {
			if len(meta.Name) > 0 {
				pkg.DisplayName = meta.Name[0]
			}
			pkg.Description = meta.Description
			if meta.Tap != "" {
				pkg.Tap = meta.Tap
			}
			pkg.AutoUpdates = meta.AutoUpdates
			pkg.Artifacts = Cask{Artifacts: meta.Artifacts}.AppArtifacts()
			return pkg, true
		}
		s.logger.Debug().Str("cask", token).Msg("Unreadable cask JSON, trying Ruby")
	}

	if data, err := afero.ReadFile(s.fs, filepath.Join(best, token+".rb")); err == nil {
		rf := parseRuby(string(data))
		if len(rf.Names) > 0 {
			pkg.DisplayName = rf.Names[0]
		}
		pkg.Description = rf.Description
		pkg.AutoUpdates = rf.AutoUpdates
		pkg.Artifacts = rf.Apps
	}
	return pkg, true
}

type installReceipt struct {
	InstalledOnRequest bool `json:"installed_on_request"`
	Source             struct {
		Tap string `json:"tap"`
	} `json:"source"`
}

// ScanFormulae reads <prefix>/Cellar/<name>/<version>/INSTALL_RECEIPT.json.
func (s *Scanner) ScanFormulae() []InstalledPackage {
	root := filepath.Join(s.prefix, "Cellar")
	pinned := s.pinned()

	var pkgs []InstalledPackage
	for _, name := range s.dirNames(root) {
		versions := s.dirNames(filepath.Join(root, name))
		if len(versions) == 0 {
			continue
		}
		sort.Slice(versions, func(i, j int) bool {
			return version.CompareStrings(versions[i], versions[j]) == version.Older
		})
		latest := versions[len(versions)-1]
		kegDir := filepath.Join(root, name, latest)

		pkg := InstalledPackage{
			Name:        name,
			DisplayName: name,
			Version:     latest,
			IsPinned:    pinned[name],
			Tap:         "homebrew/core",
		}

		if data, err := afero.ReadFile(s.fs, filepath.Join(kegDir, "INSTALL_RECEIPT.json")); err == nil {
			var receipt installReceipt
			if err := json.Unmarshal(data, &receipt); err == nil {
				pkg.InstalledOnRequest = receipt.InstalledOnRequest
				if receipt.Source.Tap != "" {
					pkg.Tap = receipt.Source.Tap
				}
			}
		}
		if data, err := afero.ReadFile(s.fs, filepath.Join(kegDir, ".brew", name+".rb")); err == nil {
			pkg.Description = parseRuby(string(data)).Description
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs
}

// pinned reads the names linked in var/homebrew/pinned.
func (s *Scanner) pinned() map[string]bool {
	out := make(map[string]bool)
	entries, err := afero.ReadDir(s.fs, filepath.Join(s.prefix, "var", "homebrew", "pinned"))
	if err != nil {
		return out
	}
	for _, e := range entries {
		out[e.Name()] = true
	}
	return out
}

func (s *Scanner) dirNames(dir string) []string {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug().Err(err).Str("dir", dir).Msg("Cannot list directory")
		}
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}
