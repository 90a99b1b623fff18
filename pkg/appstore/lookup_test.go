package appstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fetch"
)

// lookupServer answers by "bundleId/entity" or "id".
type lookupServer struct {
	*httptest.Server
	mu      sync.Mutex
	queries []string
	bodies  map[string]string
}

func newLookupServer(t *testing.T, bodies map[string]string) *lookupServer {
	t.Helper()
	s := &lookupServer{bodies: bodies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		key := q.Get("bundleId") + "/" + q.Get("entity")
		if id := q.Get("id"); id != "" {
			key = id
		}
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.RawQuery)
		body, ok := s.bodies[key]
		s.mu.Unlock()
		if !ok {
			body = `{"resultCount":0,"results":[]}`
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *lookupServer) client(country string) *LookupClient {
	return NewLookupClient(fetch.NewWithHTTPClient(s.Client(), "test"), s.URL+"/lookup", country)
}

func TestLookupBundleFallsBackToMacSoftware(t *testing.T) {
	srv := newLookupServer(t, map[string]string{
		"com.example.catalyst/macSoftware": `{"resultCount":1,"results":[{
			"trackId": 1234567890, "version": "2.3", "bundleId": "com.example.catalyst",
			"trackName": "Catalyst", "artistName": "Example Inc.",
			"trackViewUrl": "https://apps.apple.com/app/id1234567890",
			"releaseNotes": "Fixes", "currentVersionReleaseDate": "2024-03-01T08:00:00Z"}]}`,
	})

	l, err := srv.client("GB").LookupBundle(context.Background(), "com.example.catalyst")
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567890), l.TrackID)
	assert.Equal(t, "1234567890", l.ProductID())
	assert.Equal(t, "2.3", l.Version)
	assert.Equal(t, "Example Inc.", l.ArtistName)
	assert.Equal(t, 2024, l.ReleaseDate.Year())

	require.Len(t, srv.queries, 2)
	assert.Contains(t, srv.queries[0], "entity=desktopSoftware")
	assert.Contains(t, srv.queries[1], "entity=macSoftware")
	assert.Contains(t, srv.queries[0], "country=GB")
	assert.Contains(t, srv.queries[0], "limit=1")
}

func TestLookupStrictDecoding(t *testing.T) {
	srv := newLookupServer(t, map[string]string{
		"com.example.noversion/desktopSoftware": `{"resultCount":1,"results":[{"trackId":1}]}`,
		"com.example.noid/desktopSoftware":      `{"resultCount":1,"results":[{"version":"1.0"}]}`,
	})
	c := srv.client("US")

	_, err := c.LookupBundle(context.Background(), "com.example.noversion")
	assert.True(t, errors.IsErrorCode(err, errors.ErrDecodeFailed))

	_, err = c.LookupBundle(context.Background(), "com.example.noid")
	assert.True(t, errors.IsErrorCode(err, errors.ErrDecodeFailed))

	_, err = c.LookupBundle(context.Background(), "com.example.missing")
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestLookupID(t *testing.T) {
	srv := newLookupServer(t, map[string]string{
		"42": `{"resultCount":1,"results":[{"trackId":42,"version":"5.0","trackName":"Game"}]}`,
	})
	l, err := srv.client("US").LookupID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Game", l.TrackName)
}
