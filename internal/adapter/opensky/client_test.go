package opensky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_States(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/states/all", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "45.5000", q.Get("lamin"))
		assert.Equal(t, "48.0000", q.Get("lamax"))
		assert.Equal(t, "5.9000", q.Get("lomin"))
		assert.Equal(t, "10.5000", q.Get("lomax"))
		_, _ = w.Write([]byte(`{"time": 1717250400, "states": [
			["4b1805", "SWR123  ", "Switzerland", 1717250399, 1717250399, 8.55, 47.45, 3200.5, false, 180.2, 270.0, -5.2],
			["4b1806", "", "Switzerland", 1717250399, 1717250399, 8.10, 46.90, 10000, false, 230, 45.5, 0],
			["4b1807", "NOPOS", "Switzerland", null, null, null, null, null, true, 0, 0, 0],
			["short"]
		]}`))
	}))
	defer srv.Close()

	// Corners in either order produce the same box.
	bounds := domain.Bounds{{48.0, 10.5}, {45.5, 5.9}}
	got, err := NewClient(srv.URL+"/", time.Second).States(context.Background(), bounds)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.Aircraft{
		ICAO24: "4b1805", Callsign: "SWR123", Lat: 47.45, Lon: 8.55,
		Altitude: 3200.5, Velocity: 180.2, Heading: 270,
	}, got[0])
	assert.Equal(t, "4b1806", got[1].Callsign, "missing callsign falls back to icao24")
}

func TestClient_StatesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"time": 1, "states": null}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second).States(context.Background(), domain.Bounds{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_StatesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).States(context.Background(), domain.Bounds{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
