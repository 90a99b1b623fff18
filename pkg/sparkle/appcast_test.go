// pkg/sparkle/appcast_test.go
// TEST TYPE: Unit Tests
// DEPENDENCIES: None
// PURPOSE: Appcast parsing and candidate selection

package sparkle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/system"
	"github.com/arthur-debert/appsweep/pkg/types"
)

const appcastXML = `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0" xmlns:sparkle="http://www.andymatuschak.org/xml-namespaces/sparkle">
  <channel>
    <title>Notes</title>
    <item>
      <title>Version 2.1</title>
      <description><![CDATA[<h2>Fixes</h2>]]></description>
      <pubDate>Mon, 06 Oct 2025 10:00:00 +0000</pubDate>
      <sparkle:minimumSystemVersion>13.0</sparkle:minimumSystemVersion>
      <sparkle:releaseNotesLink>https://example.com/notes/2.1</sparkle:releaseNotesLink>
      <enclosure url="https://example.com/Notes-2.1.zip" length="1024" type="application/octet-stream"
        sparkle:version="210" sparkle:shortVersionString="2.1" sparkle:edSignature="sig"/>
    </item>
    <item>
      <title>Version 2.2 beta</title>
      <sparkle:channel>beta</sparkle:channel>
      <sparkle:version>220</sparkle:version>
      <sparkle:shortVersionString>2.2</sparkle:shortVersionString>
      <enclosure url="https://example.com/Notes-2.2b.zip" length="2048" type="application/octet-stream"/>
    </item>
    <item>
      <title>Nested only</title>
      <sparkle:version>200</sparkle:version>
      <sparkle:shortVersionString>2.0</sparkle:shortVersionString>
      <enclosure url="https://example.com/Notes-2.0.zip" sparkle:version="201"/>
    </item>
    <item>
      <title>No build</title>
      <enclosure url="https://example.com/broken.zip" sparkle:shortVersionString="9.9"/>
    </item>
  </channel>
</rss>`

func TestParseAppcast(t *testing.T) {
	items, err := ParseAppcast([]byte(appcastXML))
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "Version 2.1", first.Title)
	assert.Equal(t, "<h2>Fixes</h2>", first.Description)
	assert.Equal(t, "210", first.Version)
	assert.Equal(t, "2.1", first.ShortVersion)
	assert.Equal(t, "13.0", first.MinimumSystemVersion)
	assert.Equal(t, "https://example.com/notes/2.1", first.ReleaseNotesLink)
	assert.Equal(t, Enclosure{
		URL:         "https://example.com/Notes-2.1.zip",
		Length:      1024,
		Type:        "application/octet-stream",
		EdSignature: "sig",
	}, first.Enclosure)
	assert.Empty(t, first.Channel)

	assert.Equal(t, "beta", items[1].Channel)
	assert.Equal(t, "220", items[1].Version)

	// enclosure attribute wins over the nested element
	assert.Equal(t, "201", items[2].Version)
	assert.Equal(t, "2.0", items[2].ShortVersion)
}

func TestParseAppcastRejectsGarbage(t *testing.T) {
	_, err := ParseAppcast([]byte("<rss><channel>"))
	assert.True(t, errors.IsErrorCode(err, errors.ErrDecodeFailed))

	_, err = ParseAppcast(nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrDecodeFailed))
}

func TestIsPreRelease(t *testing.T) {
	tests := []struct {
		item Item
		want bool
	}{
		{Item{ShortVersion: "2.1", Version: "210"}, false},
		{Item{ShortVersion: "2.2", Version: "220", Channel: "beta"}, true},
		{Item{ShortVersion: "3.0-beta.1", Version: "300"}, true},
		{Item{ShortVersion: "3.0", Version: "3.0rc2"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPreRelease(tt.item), "%+v", tt.item)
	}
}

func TestSelectBestFiltersBeforeMax(t *testing.T) {
	items, err := ParseAppcast([]byte(appcastXML))
	require.NoError(t, err)

	best, ok := SelectBest(items, Policy{})
	require.True(t, ok)
	assert.Equal(t, "2.1", best.ShortVersion)

	best, ok = SelectBest(items, Policy{IncludePrereleases: true})
	require.True(t, ok)
	assert.Equal(t, "2.2", best.ShortVersion)

	_, ok = SelectBest([]Item{{ShortVersion: "1.0-beta", Version: "1"}}, Policy{})
	assert.False(t, ok)
}

func TestPolicyChannels(t *testing.T) {
	assert.Empty(t, Policy{}.AllowedChannels())
	assert.Equal(t, []string{AnyChannel}, Policy{IncludePrereleases: true}.AllowedChannels())

	assert.True(t, inChannels(Item{}, nil))
	assert.False(t, inChannels(Item{Channel: "beta"}, Policy{}.AllowedChannels()))
	assert.True(t, inChannels(Item{Channel: "beta"}, Policy{IncludePrereleases: true}.AllowedChannels()))
	assert.True(t, inChannels(Item{Channel: "canary"}, Policy{IncludePrereleases: true}.AllowedChannels()))
	assert.False(t, inChannels(Item{Channel: "canary"}, Policy{}.AllowedChannels()))
	assert.True(t, inChannels(Item{Channel: "canary"}, []string{"canary"}))
	assert.False(t, inChannels(Item{Channel: "canary"}, []string{"beta"}))
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	app := types.InstalledApp{BundleID: "com.example.notes", Version: "2.0", Build: "200"}
	host := system.NewStatic("14.5")

	t.Run("newer build", func(t *testing.T) {
		assert.True(t, Evaluate(ctx, app, Item{ShortVersion: "2.1", Version: "210"}, Policy{}, host))
	})

	t.Run("same build", func(t *testing.T) {
		assert.False(t, Evaluate(ctx, app, Item{ShortVersion: "2.0", Version: "200"}, Policy{}, host))
	})

	t.Run("folded build number is sanitized", func(t *testing.T) {
		// "2.0.200" is the installed version with its build appended
		assert.False(t, Evaluate(ctx, app, Item{Version: "2.0.200"}, Policy{}, host))
		assert.False(t, Evaluate(ctx, app, Item{Version: "200"}, Policy{}, host))
	})

	t.Run("minimum system version gate", func(t *testing.T) {
		item := Item{ShortVersion: "3.0", Version: "300", MinimumSystemVersion: "15.0"}
		assert.False(t, Evaluate(ctx, app, item, Policy{}, host))
		assert.True(t, Evaluate(ctx, app, item, Policy{}, system.NewStatic("15.1")))
	})

	t.Run("pre-release excluded unless enabled", func(t *testing.T) {
		item := Item{ShortVersion: "3.0", Version: "300", Channel: "beta"}
		assert.False(t, Evaluate(ctx, app, item, Policy{}, host))
		assert.True(t, Evaluate(ctx, app, item, Policy{IncludePrereleases: true}, host))
	})
}

func TestFeedURL(t *testing.T) {
	const template = "https://{domain}/{name}/appcast.xml"

	declared := types.InstalledApp{BundleID: "com.example.Notes", FeedURL: " https://feeds.example.com/notes.xml "}
	assert.Equal(t, "https://feeds.example.com/notes.xml", FeedURL(declared, template))

	framework := types.InstalledApp{BundleID: "com.example.Notes", HasSparkle: true}
	assert.Equal(t, "https://example.com/notes/appcast.xml", FeedURL(framework, template))

	plain := types.InstalledApp{BundleID: "com.example.Notes"}
	assert.Empty(t, FeedURL(plain, template))

	assert.Equal(t, "https://example.co.uk/tool/appcast.xml", SynthesizeFeedURL("uk.co.example.Tool", template))
	assert.Empty(t, SynthesizeFeedURL("notes", template))
}

func TestCandidateCache(t *testing.T) {
	c := NewCandidateCache()
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", Item{Version: "1"})
	item, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", item.Version)
	assert.Equal(t, 1, c.Len())

	c.Delete("a")
	assert.Equal(t, 0, c.Len())
}
