package homebrew

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fetch"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

const (
	// CatalogMaxAge is how long a cached cask.json is trusted.
	CatalogMaxAge = 24 * time.Hour
	// a truncated download is smaller than this
	catalogMinSize = 1024
)

// Catalog provides the full cask list, cached on disk.
type Catalog struct {
	client    *fetch.Client
	fs        afero.Fs
	apiURL    string
	cachePath string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewCatalog caches apiURL/cask.json at cachePath.
func NewCatalog(client *fetch.Client, fs afero.Fs, apiURL, cachePath string) *Catalog {
	return &Catalog{
		client:    client,
		fs:        fs,
		apiURL:    strings.TrimRight(apiURL, "/"),
		cachePath: cachePath,
		now:       time.Now,
		logger:    logging.GetLogger("homebrew.catalog"),
	}
}

// Casks returns every cask, from cache unless it is stale or refresh is set.
func (c *Catalog) Casks(ctx context.Context, refresh bool) ([]Cask, error) {
	if !refresh {
		if data := c.readCache(); data != nil {
			var casks []Cask
			if err := json.Unmarshal(data, &casks); err == nil {
				return casks, nil
			}
			c.logger.Debug().Msg("Cached cask catalog is corrupt, refetching")
		}
	}

	data, err := c.client.Bytes(ctx, c.apiURL+"/cask.json")
	if err != nil {
		return nil, err
	}
	var casks []Cask
	if err := json.Unmarshal(data, &casks); err != nil {
		return nil, errors.Wrap(err, errors.ErrDecodeFailed, "invalid cask catalog")
	}
	c.writeCache(data)
	return casks, nil
}

func (c *Catalog) readCache() []byte {
	info, err := c.fs.Stat(c.cachePath)
	if err != nil || info.Size() < catalogMinSize || c.now().Sub(info.ModTime()) > CatalogMaxAge {
		return nil
	}
	data, err := afero.ReadFile(c.fs, c.cachePath)
	if err != nil || len(data) == 0 {
		return nil
	}
	return data
}

func (c *Catalog) writeCache(data []byte) {
	if err := c.fs.MkdirAll(filepath.Dir(c.cachePath), 0750); err != nil {
		c.logger.Warn().Err(err).Msg("Cannot create cache directory")
		return
	}
	if err := afero.WriteFile(c.fs, c.cachePath, data, 0600); err != nil {
		c.logger.Warn().Err(err).Msg("Cannot write cask catalog cache")
	}
}
