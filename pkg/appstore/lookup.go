package appstore

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/fetch"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// Result-type filters, narrowest first.
const (
	EntityDesktopSoftware = "desktopSoftware"
	EntityMacSoftware     = "macSoftware"
)

// Listing is a decoded lookup result.
type Listing struct {
	TrackID      uint64
	BundleID     string
	Version      string
	TrackName    string
	ArtistName   string
	Genre        string
	TrackViewURL string
	ReleaseNotes string
	ReleaseDate  time.Time
}

// ProductID renders the track id as the store's product id string.
func (l Listing) ProductID() string {
	return strconv.FormatUint(l.TrackID, 10)
}

type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

type lookupResult struct {
	TrackID                   *uint64 `json:"trackId"`
	Version                   *string `json:"version"`
	BundleID                  string  `json:"bundleId"`
	TrackName                 string  `json:"trackName"`
	ArtistName                string  `json:"artistName"`
	PrimaryGenreName          string  `json:"primaryGenreName"`
	TrackViewURL              string  `json:"trackViewUrl"`
	ReleaseNotes              string  `json:"releaseNotes"`
	CurrentVersionReleaseDate string  `json:"currentVersionReleaseDate"`
}

// LookupClient queries the public lookup API.
type LookupClient struct {
	client  *fetch.Client
	baseURL string
	country string
	logger  zerolog.Logger
}

// NewLookupClient queries baseURL (".../lookup") in the given store country.
func NewLookupClient(client *fetch.Client, baseURL, country string) *LookupClient {
	return &LookupClient{
		client:  client,
		baseURL: baseURL,
		country: country,
		logger:  logging.GetLogger("appstore.lookup"),
	}
}

// LookupBundle finds the listing for a bundle id, trying the desktop
// software filter before the broader mac software one.
func (c *LookupClient) LookupBundle(ctx context.Context, bundleID string) (Listing, error) {
	var lastErr error
	for _, entity := range []string{EntityDesktopSoftware, EntityMacSoftware} {
		l, err := c.lookup(ctx, url.Values{"bundleId": {bundleID}, "entity": {entity}})
		if err == nil {
			return l, nil
		}
		lastErr = err
		if !errors.IsErrorCode(err, errors.ErrNotFound) {
			return Listing{}, err
		}
		c.logger.Trace().Str("bundleId", bundleID).Str("entity", entity).Msg("No listing")
	}
	return Listing{}, lastErr
}

// LookupID finds the listing for a product id.
func (c *LookupClient) LookupID(ctx context.Context, productID string) (Listing, error) {
	return c.lookup(ctx, url.Values{"id": {productID}})
}

func (c *LookupClient) lookup(ctx context.Context, q url.Values) (Listing, error) {
	q.Set("country", c.country)
	q.Set("limit", "1")

	var resp lookupResponse
	if err := c.client.JSON(ctx, c.baseURL+"?"+q.Encode(), &resp); err != nil {
		return Listing{}, err
	}
	if resp.ResultCount == 0 || len(resp.Results) == 0 {
		return Listing{}, errors.Newf(errors.ErrNotFound, "no store listing for %s", q.Encode())
	}
	return decodeResult(resp.Results[0])
}

func decodeResult(r lookupResult) (Listing, error) {
	if r.TrackID == nil {
		return Listing{}, errors.New(errors.ErrDecodeFailed, "lookup result has no trackId")
	}
	if r.Version == nil || strings.TrimSpace(*r.Version) == "" {
		return Listing{}, errors.New(errors.ErrDecodeFailed, "lookup result has no version")
	}

	l := Listing{
		TrackID:      *r.TrackID,
		BundleID:     r.BundleID,
		Version:      strings.TrimSpace(*r.Version),
		TrackName:    r.TrackName,
		ArtistName:   r.ArtistName,
		Genre:        r.PrimaryGenreName,
		TrackViewURL: r.TrackViewURL,
		ReleaseNotes: r.ReleaseNotes,
	}
	if r.CurrentVersionReleaseDate != "" {
		if t, err := time.Parse(time.RFC3339, r.CurrentVersionReleaseDate); err == nil {
			l.ReleaseDate = t
		}
	}
	return l, nil
}
