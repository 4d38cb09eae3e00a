// Package ipgeo resolves a coarse position from the caller's public IP using
// an ip-api.com compatible endpoint.
package ipgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/geolocation"
	"github.com/jonboulle/clockwork"
)

// Client is a low-accuracy geolocation.Locator.
type Client struct {
	url        string
	httpClient *http.Client
	clock      clockwork.Clock

	mu    sync.Mutex
	fix   domain.UserLocation
	fixAt time.Time
}

// NewClient creates a locator that queries url.
func NewClient(url string, clock clockwork.Clock) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{},
		clock:      clock,
	}
}

type lookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate returns the cached fix when it is younger than opts.MaximumAge,
// otherwise performs a lookup. The accuracy hint is ignored.
func (c *Client) Locate(ctx context.Context, opts geolocation.Options) (domain.UserLocation, error) {
	if loc, ok := c.cached(opts.MaximumAge); ok {
		return loc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.UserLocation{}, fmt.Errorf("create ip lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UserLocation{}, fmt.Errorf("ip lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.UserLocation{}, fmt.Errorf("ip lookup status %d: %w", resp.StatusCode, domain.ErrLocationDenied)
	case resp.StatusCode != http.StatusOK:
		return domain.UserLocation{}, fmt.Errorf("ip lookup status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.UserLocation{}, fmt.Errorf("decode ip lookup: %w", err)
	}
	if body.Status != "success" {
		return domain.UserLocation{}, fmt.Errorf("ip lookup failed: %s", body.Message)
	}

	loc := domain.UserLocation{Lat: body.Lat, Lon: body.Lon}
	c.mu.Lock()
	c.fix, c.fixAt = loc, c.clock.Now()
	c.mu.Unlock()
	return loc, nil
}

func (c *Client) cached(maxAge time.Duration) (domain.UserLocation, bool) {
	if maxAge <= 0 {
		return domain.UserLocation{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fixAt.IsZero() || c.clock.Since(c.fixAt) > maxAge {
		return domain.UserLocation{}, false
	}
	return c.fix, true
}
