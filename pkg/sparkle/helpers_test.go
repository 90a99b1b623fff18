package sparkle

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/bundle"
)

// updateArchive zips files (name → content) into an update archive.
func updateArchive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func infoPlist(t *testing.T, info bundle.Info) []byte {
	t.Helper()
	data, err := plist.Marshal(info, plist.XMLFormat)
	require.NoError(t, err)
	return data
}

func appcastWith(items ...string) string {
	body := ""
	for _, item := range items {
		body += item
	}
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0" xmlns:sparkle="http://www.andymatuschak.org/xml-namespaces/sparkle"><channel>%s</channel></rss>`, body)
}

func appcastItem(short, build, channel, url string) string {
	ch := ""
	if channel != "" {
		ch = "<sparkle:channel>" + channel + "</sparkle:channel>"
	}
	return fmt.Sprintf(`<item><title>Version %s</title>%s<enclosure url="%s" sparkle:version="%s" sparkle:shortVersionString="%s"/></item>`,
		short, ch, url, build, short)
}
