// pkg/fetch/fetch_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: httptest server
// PURPOSE: Typed HTTP errors and download progress

package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"` + r.Header.Get("User-Agent") + `"}`))
	})
	mux.HandleFunc("/bad.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":`))
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestJSON(t *testing.T) {
	srv := newServer(t)
	c := NewWithHTTPClient(srv.Client(), "appsweep-test")

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.JSON(context.Background(), srv.URL+"/ok.json", &out))
	assert.Equal(t, "appsweep-test", out.Name)
}

func TestErrorsAreTyped(t *testing.T) {
	srv := newServer(t)
	c := NewWithHTTPClient(srv.Client(), "")
	ctx := context.Background()
	var v map[string]interface{}

	tests := []struct {
		path string
		code errors.ErrorCode
	}{
		{"/missing", errors.ErrNotFound},
		{"/boom", errors.ErrLookupFailed},
		{"/bad.json", errors.ErrDecodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := c.JSON(ctx, srv.URL+tt.path, &v)
			assert.True(t, errors.IsErrorCode(err, tt.code), "got %v", err)
		})
	}
}

func TestDownloadReportsProgress(t *testing.T) {
	srv := newServer(t)
	c := NewWithHTTPClient(srv.Client(), "")

	var buf bytes.Buffer
	var last float64
	n, err := c.Download(context.Background(), srv.URL+"/blob", &buf, func(written, total int64) {
		f := Fraction(written, total)
		assert.GreaterOrEqual(t, f, last)
		last = f
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, n)
	assert.Equal(t, 1000, buf.Len())
	assert.Equal(t, 1.0, last)
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 0.0, Fraction(10, -1))
	assert.Equal(t, 0.5, Fraction(5, 10))
	assert.Equal(t, 1.0, Fraction(12, 10))
}
