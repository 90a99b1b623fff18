// Package system reports facts about the host that update decisions
// depend on: the macOS version and the store country.
package system

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/logging"
	"github.com/arthur-debert/appsweep/pkg/version"
)

// DefaultCountry is used when no region can be derived from the locale.
const DefaultCountry = "US"

// Info caches host facts for the lifetime of a process.
type Info struct {
	runner command.Runner

	once      sync.Once
	osVersion string
}

// New creates an Info that queries the host through runner.
func New(runner command.Runner) *Info {
	return &Info{runner: runner}
}

// NewStatic returns an Info with a fixed OS version.
func NewStatic(osVersion string) *Info {
	i := &Info{osVersion: osVersion}
	i.once.Do(func() {})
	return i
}

// OSVersion returns the product version reported by sw_vers, or "" when it
// cannot be determined.
func (i *Info) OSVersion(ctx context.Context) string {
	i.once.Do(func() {
		out, err := command.Output(ctx, i.runner, "sw_vers", "-productVersion")
		if err != nil {
			logger := logging.GetLogger("system")
			logger.Debug().Err(err).Msg("Cannot determine OS version")
			return
		}
		i.osVersion = out
	})
	return i.osVersion
}

// SatisfiesMinimum reports whether the host meets a minimum system version.
// An unknown host or an empty minimum never blocks.
func (i *Info) SatisfiesMinimum(ctx context.Context, minimum string) bool {
	minimum = strings.TrimSpace(minimum)
	if minimum == "" {
		return true
	}
	host := i.OSVersion(ctx)
	if host == "" {
		return true
	}
	return version.CompareStrings(host, minimum) != version.Older
}

// Country returns the configured store country, else the region of the
// user's locale, else DefaultCountry.
func Country(configured string) string {
	if c := strings.TrimSpace(configured); c != "" {
		return strings.ToUpper(c)
	}
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if c := regionFromLocale(os.Getenv(key)); c != "" {
			return c
		}
	}
	return DefaultCountry
}

// regionFromLocale extracts "GB" from "en_GB.UTF-8" or "en-GB".
func regionFromLocale(locale string) string {
	locale, _, _ = strings.Cut(locale, ".")
	locale, _, _ = strings.Cut(locale, "@")
	sep := strings.IndexAny(locale, "_-")
	if sep < 0 {
		return ""
	}
	region := locale[sep+1:]
	if len(region) != 2 {
		return ""
	}
	for _, r := range region {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return ""
		}
	}
	return strings.ToUpper(region)
}
