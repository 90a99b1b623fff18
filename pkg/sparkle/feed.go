package sparkle

import (
	"strings"

	"github.com/arthur-debert/appsweep/pkg/types"
)

// FeedURL returns the appcast URL for app: its SUFeedURL, else a URL
// synthesized from the bundle id when the app embeds Sparkle.framework.
// "" means the app has no Sparkle feed.
func FeedURL(app types.InstalledApp, template string) string {
	if u := strings.TrimSpace(app.FeedURL); u != "" {
		return u
	}
	if !app.HasSparkle || template == "" {
		return ""
	}
	return SynthesizeFeedURL(app.BundleID, template)
}

// SynthesizeFeedURL expands {domain} and {name} in template from a reverse
// DNS bundle id: "com.example.Notes" gives domain "example.com" and name
// "notes".
func SynthesizeFeedURL(bundleID, template string) string {
	parts := strings.Split(strings.TrimSpace(bundleID), ".")
	if len(parts) < 3 {
		return ""
	}
	prefix := parts[:len(parts)-1]
	domain := make([]string, 0, len(prefix))
	for i := len(prefix) - 1; i >= 0; i-- {
		domain = append(domain, strings.ToLower(prefix[i]))
	}
	name := strings.ToLower(parts[len(parts)-1])

	return strings.NewReplacer("{domain}", strings.Join(domain, "."), "{name}", name).Replace(template)
}
