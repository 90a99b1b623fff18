package sparkle

import (
	"context"

	"github.com/arthur-debert/appsweep/pkg/types"
	"github.com/arthur-debert/appsweep/pkg/version"
)

// Policy decides which appcast items are candidates.
type Policy struct {
	IncludePrereleases bool
}

// AnyChannel in a channel allow-list admits items on every named channel.
const AnyChannel = "*"

// AllowedChannels is the channel allow-list handed to the engine. Stable
// items ("" channel) are always allowed. Appcasts name their own channels,
// so pre-release policies admit all of them.
func (p Policy) AllowedChannels() []string {
	if !p.IncludePrereleases {
		return []string{}
	}
	return []string{AnyChannel}
}

// Allows reports whether an item passes the pre-release filter.
func (p Policy) Allows(item Item) bool {
	return p.IncludePrereleases || !IsPreRelease(item)
}

// IsPreRelease is true for items on a non-default channel or whose version
// reads like a pre-release.
func IsPreRelease(item Item) bool {
	if item.Channel != "" {
		return true
	}
	return version.IsPreReleaseVersion(item.ShortVersion) || version.IsPreReleaseVersion(item.Version)
}

// ItemVersion is the item's version pair as the comparator sees it. An
// item with only a build version is read as a bare version string so that
// Sanitize can split a folded build number off it.
func ItemVersion(item Item) version.Version {
	if item.ShortVersion == "" {
		return version.New(item.Version, "")
	}
	return version.New(item.ShortVersion, item.Version)
}

// SelectBest filters items by policy and then returns the newest one. The
// order matters: a newer pre-release must not hide an older stable item.
func SelectBest(items []Item, policy Policy) (Item, bool) {
	var best Item
	found := false
	for _, item := range items {
		if !policy.Allows(item) {
			continue
		}
		if !found || version.Compare(ItemVersion(item), ItemVersion(best)) == version.Newer {
			best = item
			found = true
		}
	}
	return best, found
}

// OSGate reports whether the host satisfies a minimum system version.
type OSGate interface {
	SatisfiesMinimum(ctx context.Context, minimum string) bool
}

// Evaluate decides whether item is an update for app. The remote version
// is sanitized against the installed pair before comparing.
func Evaluate(ctx context.Context, app types.InstalledApp, item Item, policy Policy, gate OSGate) bool {
	if !policy.Allows(item) {
		return false
	}
	if gate != nil && !gate.SatisfiesMinimum(ctx, item.MinimumSystemVersion) {
		return false
	}
	installed := version.New(app.Version, app.Build)
	remote := version.Sanitize(ItemVersion(item), installed)
	return version.Compare(remote, installed) == version.Newer
}

func inChannels(item Item, channels []string) bool {
	if item.Channel == "" {
		return true
	}
	for _, c := range channels {
		if c == AnyChannel || c == item.Channel {
			return true
		}
	}
	return false
}
