// Package store holds the application state shared between the poller, the
// geolocation tracker, the session manager and the local API. Update methods
// are the only mutation path; each piece of state has a single writer.
package store

import (
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// Change names the part of the state a mutation touched.
type Change string

const (
	ChangeStatus   Change = "status"
	ChangeImages   Change = "images"
	ChangeReports  Change = "reports"
	ChangeFetch    Change = "fetch"
	ChangeLocation Change = "location"
	ChangeSession  Change = "session"
	ChangePrefs    Change = "prefs"
)

// Map layer preferences.
const (
	LayerStandard  = "standard"
	LayerSatellite = "satellite"
)

// Snapshot is an immutable copy of the state.
type Snapshot struct {
	Status        *domain.Status           `json:"status,omitempty"`
	Images        domain.ImageSet          `json:"images"`
	Reports       []domain.WeatherReport   `json:"reports"`
	Location      *domain.UserLocation     `json:"location,omitempty"`
	LocationError domain.LocationErrorKind `json:"location_error,omitempty"`
	Session       *domain.Session          `json:"session,omitempty"`
	FetchError    bool                     `json:"fetch_error"`
	FetchErrors   map[string]string        `json:"fetch_errors,omitempty"`
	Nearest       *domain.NearestStorm     `json:"nearest_storm"`
	MapLayer      string                   `json:"map_layer"`
	TutorialSeen  bool                     `json:"tutorial_seen"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// LoggedIn reports whether the snapshot carries an active session.
func (s Snapshot) LoggedIn() bool {
	return s.Session != nil && s.Session.Token != ""
}

// Store is the single top-level owner of shared state.
type Store struct {
	mu       sync.RWMutex
	radiusKm float64
	state    Snapshot
	subs     map[int]func(Change, Snapshot)
	nextSub  int
}

// New creates an empty store that evaluates nearest storms within radiusKm.
func New(radiusKm float64) *Store {
	if radiusKm <= 0 {
		radiusKm = domain.DefaultAlertRadiusKm
	}
	return &Store{
		radiusKm: radiusKm,
		state: Snapshot{
			FetchErrors: map[string]string{},
			MapLayer:    LayerStandard,
		},
		subs: map[int]func(Change, Snapshot){},
	}
}

// Subscribe registers fn for every change. The returned func unsubscribes.
// Callbacks run synchronously on the writer's goroutine after the lock is
// released and must not block.
func (s *Store) Subscribe(fn func(Change, Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Token returns the active session token, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Session == nil {
		return ""
	}
	return s.state.Session.Token
}

// Location returns the last known user location, or nil.
func (s *Store) Location() *domain.UserLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Location == nil {
		return nil
	}
	loc := *s.state.Location
	return &loc
}

// SetStatus replaces the backend status.
func (s *Store) SetStatus(st domain.Status) {
	s.update(ChangeStatus, func(state *Snapshot) {
		state.Status = &st
	})
}

// SetImages replaces both frame lists and recomputes the nearest storm.
func (s *Store) SetImages(set domain.ImageSet) {
	s.update(ChangeImages, func(state *Snapshot) {
		state.Images = set
		state.Nearest = domain.NearestStormFor(state.Location, set, s.radiusKm)
	})
}

// SetReports replaces the crowdsourced reports.
func (s *Store) SetReports(reports []domain.WeatherReport) {
	s.update(ChangeReports, func(state *Snapshot) {
		state.Reports = reports
	})
}

// SetFetchError records the outcome of the latest poll of resource. A nil err
// clears that resource's error; the aggregate flag is set while any resource
// is failing.
func (s *Store) SetFetchError(resource string, err error) {
	s.mu.Lock()
	prev, had := s.state.FetchErrors[resource]
	switch {
	case err == nil && !had:
		s.mu.Unlock()
		return
	case err != nil && had && prev == err.Error():
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.update(ChangeFetch, func(state *Snapshot) {
		if err == nil {
			delete(state.FetchErrors, resource)
		} else {
			state.FetchErrors[resource] = err.Error()
		}
		state.FetchError = len(state.FetchErrors) > 0
	})
}

// SetLocation records a fresh fix, clears any location error and recomputes
// the nearest storm.
func (s *Store) SetLocation(loc domain.UserLocation) {
	s.update(ChangeLocation, func(state *Snapshot) {
		state.Location = &loc
		state.LocationError = ""
		state.Nearest = domain.NearestStormFor(state.Location, state.Images, s.radiusKm)
	})
}

// SetLocationError records why the last lookup failed. The previous fix, if
// any, is kept.
func (s *Store) SetLocationError(kind domain.LocationErrorKind) {
	s.update(ChangeLocation, func(state *Snapshot) {
		state.LocationError = kind
	})
}

// SetSession installs or clears (nil) the active session.
func (s *Store) SetSession(sess *domain.Session) {
	s.update(ChangeSession, func(state *Snapshot) {
		if sess == nil {
			state.Session = nil
			return
		}
		cp := *sess
		state.Session = &cp
	})
}

// SetMapLayer records the map layer preference.
func (s *Store) SetMapLayer(layer string) {
	s.update(ChangePrefs, func(state *Snapshot) {
		state.MapLayer = layer
	})
}

// SetTutorialSeen records whether the tutorial was dismissed.
func (s *Store) SetTutorialSeen(seen bool) {
	s.update(ChangePrefs, func(state *Snapshot) {
		state.TutorialSeen = seen
	})
}

func (s *Store) update(change Change, fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	s.state.UpdatedAt = domain.Now()
	snap := s.copyLocked()
	subs := make([]func(Change, Snapshot), 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(change, snap)
	}
}

func (s *Store) copyLocked() Snapshot {
	cp := s.state
	cp.Reports = slices.Clone(s.state.Reports)
	cp.FetchErrors = make(map[string]string, len(s.state.FetchErrors))
	for k, v := range s.state.FetchErrors {
		cp.FetchErrors[k] = v
	}
	if s.state.Status != nil {
		st := *s.state.Status
		cp.Status = &st
	}
	if s.state.Location != nil {
		loc := *s.state.Location
		cp.Location = &loc
	}
	if s.state.Session != nil {
		sess := *s.state.Session
		cp.Session = &sess
	}
	if s.state.Nearest != nil {
		n := *s.state.Nearest
		cp.Nearest = &n
	}
	return cp
}
