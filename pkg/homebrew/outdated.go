package homebrew

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fetch"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/version"
)

// OutdatedChecker finds newer versions of installed packages.
type OutdatedChecker struct {
	client      *fetch.Client
	fs          afero.Fs
	prefix      string
	apiURL      string
	concurrency int
	logger      zerolog.Logger
}

// NewOutdatedChecker queries apiURL (".../api") with at most concurrency
// requests in flight and reads tap definitions under prefix.
func NewOutdatedChecker(client *fetch.Client, fs afero.Fs, prefix, apiURL string, concurrency int) *OutdatedChecker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &OutdatedChecker{
		client:      client,
		fs:          fs,
		prefix:      prefix,
		apiURL:      strings.TrimRight(apiURL, "/"),
		concurrency: concurrency,
		logger:      logging.GetLogger("homebrew.outdated"),
	}
}

// Outdated returns the packages whose available version differs from the
// installed one after normalization. Pinned packages are never outdated.
// Lookup failures are logged and the package is treated as current.
func (o *OutdatedChecker) Outdated(ctx context.Context, pkgs []InstalledPackage) []OutdatedPackage {
	var (
		mu  sync.Mutex
		out []OutdatedPackage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, pkg := range pkgs {
		if pkg.IsPinned {
			continue
		}
		g.Go(func() error {
			available, err := o.AvailableVersion(gctx, pkg)
			if err != nil {
				o.logger.Debug().Err(err).Str("package", pkg.Name).Msg("Cannot resolve available version")
				return nil
			}
			if !IsNewer(available, pkg.Version) {
				return nil
			}
			mu.Lock()
			out = append(out, OutdatedPackage{
				Name:             pkg.Name,
				InstalledVersion: pkg.Version,
				AvailableVersion: available,
				IsCask:           pkg.IsCask,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// AvailableVersion asks the API for core taps and falls back to the tap's
// Ruby file when the API has no entry.
func (o *OutdatedChecker) AvailableVersion(ctx context.Context, pkg InstalledPackage) (string, error) {
	if IsCoreTap(pkg.Tap) {
		v, err := o.apiVersion(ctx, pkg)
		if err == nil {
			return v, nil
		}
		if !errors.IsErrorCode(err, errors.ErrNotFound) {
			return "", err
		}
	}
	return o.tapVersion(pkg)
}

func (o *OutdatedChecker) apiVersion(ctx context.Context, pkg InstalledPackage) (string, error) {
	if pkg.IsCask {
		var c Cask
		if err := o.client.JSON(ctx, fmt.Sprintf("%s/cask/%s.json", o.apiURL, pkg.Name), &c); err != nil {
			return "", err
		}
		if c.Version == "" {
			return "", errors.Newf(errors.ErrDecodeFailed, "cask %s has no version", pkg.Name)
		}
		return c.Version, nil
	}

	var f Formula
	if err := o.client.JSON(ctx, fmt.Sprintf("%s/formula/%s.json", o.apiURL, pkg.Name), &f); err != nil {
		return "", err
	}
	if f.Versions.Stable == "" {
		return "", errors.Newf(errors.ErrDecodeFailed, "formula %s has no stable version", pkg.Name)
	}
	if f.Revision > 0 {
		return fmt.Sprintf("%s_%d", f.Versions.Stable, f.Revision), nil
	}
	return f.Versions.Stable, nil
}

// tapVersion reads the version literal from the package's definition in a
// locally cloned tap.
func (o *OutdatedChecker) tapVersion(pkg InstalledPackage) (string, error) {
	for _, path := range o.tapFiles(pkg) {
		data, err := afero.ReadFile(o.fs, path)
		if err != nil {
			continue
		}
		if v := parseRuby(string(data)).Version; v != "" {
			return v, nil
		}
	}
	return "", errors.Newf(errors.ErrNotFound, "no tap definition with a version for %s", pkg.Name)
}

// tapFiles lists candidate definition paths for user/repo taps, which are
// cloned to Library/Taps/<user>/homebrew-<repo>.
func (o *OutdatedChecker) tapFiles(pkg InstalledPackage) []string {
	tap := pkg.Tap
	if tap == "" {
		tap = "homebrew/core"
		if pkg.IsCask {
			tap = "homebrew/cask"
		}
	}
	user, repo, ok := strings.Cut(tap, "/")
	if !ok {
		return nil
	}
	root := filepath.Join(o.prefix, "Library", "Taps", user, "homebrew-"+repo)

	kind := "Formula"
	if pkg.IsCask {
		kind = "Casks"
	}
	file := pkg.Name + ".rb"
	paths := []string{
		filepath.Join(root, kind, file),
		filepath.Join(root, file),
	}
	if len(pkg.Name) > 0 {
		// homebrew/cask shards by first letter
		paths = append(paths, filepath.Join(root, kind, pkg.Name[:1], file))
	}
	return paths
}

// IsNewer reports whether available should be offered over installed:
// the normalized strings differ and available does not compare older or
// equal.
func IsNewer(available, installed string) bool {
	a, i := NormalizeVersion(available), NormalizeVersion(installed)
	if a == "" || a == i || available == "latest" {
		return false
	}
	switch version.CompareStrings(a, i) {
	case version.Newer, version.Undefined:
		return true
	}
	return false
}
