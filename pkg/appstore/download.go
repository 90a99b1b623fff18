package appstore

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// ProgressFunc receives a fraction in [0,1].
type ProgressFunc func(float64)

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s?%`)

// parsePercent extracts the last percentage on a line.
func parsePercent(line string) (float64, bool) {
	m := percentPattern.FindAllStringSubmatch(line, -1)
	if len(m) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[len(m)-1][1], 64)
	if err != nil || v > 100 {
		return 0, false
	}
	return v / 100, true
}

// Downloader installs store updates through the mas tool.
type Downloader struct {
	runner command.Runner
	tool   string
	logger zerolog.Logger
}

// NewDownloader drives tool (normally "mas").
func NewDownloader(runner command.Runner, tool string) *Downloader {
	if tool == "" {
		tool = "mas"
	}
	return &Downloader{runner: runner, tool: tool, logger: logging.GetLogger("appstore.download")}
}

// Update runs "mas upgrade <id>" and reports progress parsed from its
// output. Progress never goes backwards and ends at 1.0 on success.
func (d *Downloader) Update(ctx context.Context, productID string, progress ProgressFunc) error {
	if productID == "" {
		return errors.New(errors.ErrInvalidInput, "missing product id")
	}

	var last float64
	report := func(f float64) {
		if progress != nil && f > last {
			last = f
			progress(f)
		}
	}

	_, err := d.runner.Run(ctx, command.Spec{
		Name: d.tool,
		Args: []string{"upgrade", productID},
		OnLine: func(_ command.Stream, line string) {
			if f, ok := parsePercent(line); ok {
				// leave room for the install phase
				report(f * 0.95)
			}
		},
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrUpdateFailed, "%s upgrade %s", d.tool, productID)
	}
	report(1)
	return nil
}

// ArchiveFetcher downloads the .ipa of a wrapped iOS app.
type ArchiveFetcher struct {
	runner command.Runner
	tool   string
	logger zerolog.Logger
}

// NewArchiveFetcher drives tool (normally "ipatool").
func NewArchiveFetcher(runner command.Runner, tool string) *ArchiveFetcher {
	if tool == "" {
		tool = "ipatool"
	}
	return &ArchiveFetcher{runner: runner, tool: tool, logger: logging.GetLogger("appstore.archive")}
}

// Fetch downloads the archive for bundleID into dir and returns its path.
func (a *ArchiveFetcher) Fetch(ctx context.Context, bundleID, dir string, progress ProgressFunc) (string, error) {
	out := filepath.Join(dir, sanitizeFileName(bundleID)+".ipa")
	_, err := a.runner.Run(ctx, command.Spec{
		Name: a.tool,
		Args: []string{"download", "--bundle-identifier", bundleID, "--output", out, "--non-interactive"},
		OnLine: func(_ command.Stream, line string) {
			if f, ok := parsePercent(line); ok && progress != nil {
				progress(f)
			}
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrUpdateFailed, "%s download %s", a.tool, bundleID)
	}
	a.logger.Debug().Str("archive", out).Msg("Archive downloaded")
	return out, nil
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, s)
}
