package sparkle

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

// Enclosure is the downloadable archive of an appcast item.
type Enclosure struct {
	URL         string
	Length      int64
	Type        string
	EdSignature string
}

// Item is one <item> of an appcast.
type Item struct {
	Title                string
	Description          string
	PubDate              string
	ReleaseNotesLink     string
	ShortVersion         string
	Version              string // CFBundleVersion of the update
	Channel              string // "" is the default channel
	MinimumSystemVersion string
	Enclosure            Enclosure
}

// DisplayVersion prefers the short version string.
func (i Item) DisplayVersion() string {
	if i.ShortVersion != "" {
		return i.ShortVersion
	}
	return i.Version
}

// ParseAppcast extracts the items of an appcast document. Items without a
// build version are dropped. Enclosure attributes win over the nested
// sparkle elements.
func ParseAppcast(data []byte) ([]Item, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrDecodeFailed, "invalid appcast XML")
	}
	if doc.Root() == nil {
		return nil, errors.New(errors.ErrDecodeFailed, "empty appcast")
	}

	var items []Item
	for _, el := range doc.FindElements("//item") {
		item := parseItem(el)
		if item.Version == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func parseItem(el *etree.Element) Item {
	item := Item{
		Title:                childText(el, "title"),
		Description:          childText(el, "description"),
		PubDate:              childText(el, "pubDate"),
		ReleaseNotesLink:     childText(el, "sparkle:releaseNotesLink"),
		Channel:              childText(el, "sparkle:channel"),
		MinimumSystemVersion: childText(el, "sparkle:minimumSystemVersion"),
		Version:              childText(el, "sparkle:version"),
		ShortVersion:         childText(el, "sparkle:shortVersionString"),
	}

	enc := el.SelectElement("enclosure")
	if enc == nil {
		return item
	}
	if v := strings.TrimSpace(enc.SelectAttrValue("sparkle:version", "")); v != "" {
		item.Version = v
	}
	if v := strings.TrimSpace(enc.SelectAttrValue("sparkle:shortVersionString", "")); v != "" {
		item.ShortVersion = v
	}
	item.Enclosure = Enclosure{
		URL:         strings.TrimSpace(enc.SelectAttrValue("url", "")),
		Type:        enc.SelectAttrValue("type", ""),
		EdSignature: enc.SelectAttrValue("sparkle:edSignature", ""),
	}
	if n, err := strconv.ParseInt(enc.SelectAttrValue("length", ""), 10, 64); err == nil {
		item.Enclosure.Length = n
	}
	return item
}

func childText(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}
