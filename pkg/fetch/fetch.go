// Package fetch performs the HTTP GETs the checkers need: JSON lookups,
// appcast documents and update archive downloads.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/config"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// maxDocumentSize bounds JSON and XML bodies held in memory.
const maxDocumentSize = 32 << 20

// Client wraps an http.Client with a fixed User-Agent.
type Client struct {
	http      *http.Client
	userAgent string
	logger    zerolog.Logger
}

// New creates a client from the http config section.
func New(cfg config.HTTPConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return NewWithHTTPClient(&http.Client{Timeout: timeout}, cfg.UserAgent)
}

// NewWithHTTPClient wraps an existing client, e.g. an httptest server's.
func NewWithHTTPClient(c *http.Client, userAgent string) *Client {
	return &Client{http: c, userAgent: userAgent, logger: logging.GetLogger("fetch")}
}

func (c *Client) get(ctx context.Context, url string, timeout time.Duration) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "invalid URL %s", url)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	client := c.http
	if timeout != 0 {
		// negative disables the client timeout
		clone := *c.http
		clone.Timeout = max(timeout, 0)
		client = &clone
	}

	c.logger.Trace().Str("url", url).Msg("GET")
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCanceled, "request canceled")
		}
		return nil, errors.Wrapf(err, errors.ErrLookupFailed, "GET %s", url)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, errors.Newf(errors.ErrNotFound, "GET %s: not found", url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, errors.Newf(errors.ErrLookupFailed, "GET %s: HTTP %d", url, resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	}
	return resp, nil
}

// Bytes fetches a document into memory.
func (c *Client) Bytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLookupFailed, "reading %s", url)
	}
	return data, nil
}

// JSON fetches url and decodes the body into v.
func (c *Client) JSON(ctx context.Context, url string, v interface{}) error {
	data, err := c.Bytes(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, errors.ErrDecodeFailed, "decoding %s", url)
	}
	return nil
}

// Progress receives the downloaded fraction in [0,1]. total is -1 when the
// server did not announce a length, in which case fraction stays 0.
type Progress func(written, total int64)

// Download streams url into w. Downloads have no overall timeout; the
// context bounds them.
func (c *Client) Download(ctx context.Context, url string, w io.Writer, progress Progress) (int64, error) {
	resp, err := c.get(ctx, url, -1)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	pw := &progressWriter{w: w, total: resp.ContentLength, fn: progress}
	n, err := io.Copy(pw, resp.Body)
	if err != nil {
		return n, errors.Wrapf(err, errors.ErrLookupFailed, "downloading %s", url)
	}
	return n, nil
}

type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	fn      Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.fn != nil {
		p.fn(p.written, p.total)
	}
	return n, err
}

// Fraction converts a byte count into [0,1].
func Fraction(written, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(written) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// UserAgent returns the configured agent string.
func (c *Client) UserAgent() string { return c.userAgent }
