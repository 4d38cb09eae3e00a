// Package opensky fetches live aircraft positions from an OpenSky Network
// compatible /api/states/all endpoint.
package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// Client queries aircraft state vectors inside a bounding box.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL, e.g. https://opensky-network.org.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type statesResponse struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

// State vector column indexes.
const (
	colICAO24   = 0
	colCallsign = 1
	colLon      = 5
	colLat      = 6
	colAltitude = 7
	colVelocity = 9
	colHeading  = 10
	minColumns  = 11
)

// States returns the aircraft currently inside bounds. Vectors without a
// position are dropped.
func (c *Client) States(ctx context.Context, bounds domain.Bounds) ([]domain.Aircraft, error) {
	south, west, north, east := bounds.Rect()
	q := url.Values{
		"lamin": {formatCoord(south)},
		"lomin": {formatCoord(west)},
		"lamax": {formatCoord(north)},
		"lomax": {formatCoord(east)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/states/all?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create states request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensky status %d", resp.StatusCode)
	}

	var body statesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode opensky states: %w", err)
	}

	out := make([]domain.Aircraft, 0, len(body.States))
	for _, s := range body.States {
		a, ok := parseState(s)
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func parseState(s []any) (domain.Aircraft, bool) {
	if len(s) < minColumns {
		return domain.Aircraft{}, false
	}
	lat, okLat := s[colLat].(float64)
	lon, okLon := s[colLon].(float64)
	if !okLat || !okLon {
		return domain.Aircraft{}, false
	}
	icao, _ := s[colICAO24].(string)
	callsign, _ := s[colCallsign].(string)
	callsign = strings.TrimSpace(callsign)
	if callsign == "" {
		callsign = icao
	}
	return domain.Aircraft{
		ICAO24:   icao,
		Callsign: callsign,
		Lat:      lat,
		Lon:      lon,
		Altitude: number(s[colAltitude]),
		Velocity: number(s[colVelocity]),
		Heading:  number(s[colHeading]),
	}, true
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
