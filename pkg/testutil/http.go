package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/arthur-debert/appsweep/pkg/fetch"
)

// Server is an httptest server serving fixed bodies by path.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	bodies map[string]string
	hits   map[string]int
}

// NewJSONServer serves bodies keyed by request path (query ignored); other
// paths return 404.
func NewJSONServer(t *testing.T, bodies map[string]string) *Server {
	t.Helper()
	s := &Server{bodies: bodies, hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		body, ok := s.bodies[r.URL.Path]
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

// Set replaces the body served at path.
func (s *Server) Set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[path] = body
}

// Hits returns how often path was requested.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Fetch returns a fetch.Client bound to the server.
func (s *Server) Fetch() *fetch.Client {
	return fetch.NewWithHTTPClient(s.Client(), "appsweep-test")
}
