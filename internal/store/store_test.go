package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func severeSet() domain.ImageSet {
	return domain.ImageSet{
		InputImages: []domain.Frame{{
			URL:   "obs.png",
			Cells: []domain.StormCell{{Lat: 47.40, Lon: 8.55, MaxDBZ: 57, Type: "hail"}},
		}},
	}
}

func TestStore_NearestRecomputedOnImagesAndLocation(t *testing.T) {
	s := store.New(domain.DefaultAlertRadiusKm)

	s.SetImages(severeSet())
	assert.Nil(t, s.Snapshot().Nearest, "no location yet")

	s.SetLocation(domain.UserLocation{Lat: 47.37, Lon: 8.54})
	nearest := s.Snapshot().Nearest
	require.NotNil(t, nearest)
	assert.InDelta(t, 3.4, nearest.DistanceKm, 0.2)

	s.SetImages(domain.ImageSet{})
	assert.Nil(t, s.Snapshot().Nearest)
}

func TestStore_CustomRadius(t *testing.T) {
	s := store.New(1)
	s.SetLocation(domain.UserLocation{Lat: 47.37, Lon: 8.54})
	s.SetImages(severeSet())
	assert.Nil(t, s.Snapshot().Nearest)
}

func TestStore_FetchErrorPerResource(t *testing.T) {
	s := store.New(0)

	s.SetFetchError("status", errors.New("status 500"))
	s.SetFetchError("images", nil)
	snap := s.Snapshot()
	assert.True(t, snap.FetchError)
	assert.Equal(t, map[string]string{"status": "status 500"}, snap.FetchErrors)

	s.SetFetchError("status", nil)
	snap = s.Snapshot()
	assert.False(t, snap.FetchError)
	assert.Empty(t, snap.FetchErrors)
}

func TestStore_SubscribeReceivesChanges(t *testing.T) {
	s := store.New(0)

	var changes []store.Change
	cancel := s.Subscribe(func(c store.Change, _ store.Snapshot) { changes = append(changes, c) })

	s.SetStatus(domain.Status{Status: "ok"})
	s.SetFetchError("status", nil) // no-op, nothing recorded
	s.SetSession(&domain.Session{Token: "tok"})
	cancel()
	s.SetMapLayer(store.LayerSatellite)

	assert.Equal(t, []store.Change{store.ChangeStatus, store.ChangeSession}, changes)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := store.New(0)
	s.SetReports([]domain.WeatherReport{{ID: "r1"}})
	s.SetFetchError("reports", errors.New("boom"))

	snap := s.Snapshot()
	snap.Reports[0].ID = "mutated"
	snap.FetchErrors["other"] = "x"

	again := s.Snapshot()
	assert.Equal(t, "r1", again.Reports[0].ID)
	assert.NotContains(t, again.FetchErrors, "other")
}

func TestStore_SessionAndToken(t *testing.T) {
	s := store.New(0)
	assert.Empty(t, s.Token())
	assert.False(t, s.Snapshot().LoggedIn())

	s.SetSession(&domain.Session{Token: "abc", User: domain.User{Email: "a@example.com"}})
	assert.Equal(t, "abc", s.Token())
	assert.True(t, s.Snapshot().LoggedIn())

	s.SetSession(nil)
	assert.Empty(t, s.Token())
}

func TestStore_LocationErrorKeepsPreviousFix(t *testing.T) {
	s := store.New(0)
	s.SetLocation(domain.UserLocation{Lat: 1, Lon: 2})
	s.SetLocationError(domain.LocationTimeout)

	snap := s.Snapshot()
	require.NotNil(t, snap.Location)
	assert.Equal(t, 1.0, snap.Location.Lat)
	assert.Equal(t, domain.LocationTimeout, snap.LocationError)

	s.SetLocation(domain.UserLocation{Lat: 3, Lon: 4})
	assert.Empty(t, s.Snapshot().LocationError)
}

func TestStore_UpdatedAtUsesDomainClock(t *testing.T) {
	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })

	s := store.New(0)
	s.SetTutorialSeen(true)

	snap := s.Snapshot()
	assert.True(t, snap.TutorialSeen)
	assert.Equal(t, at, snap.UpdatedAt)
	assert.Equal(t, store.LayerStandard, snap.MapLayer)
}
