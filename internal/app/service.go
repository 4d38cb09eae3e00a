package app

import (
	"context"
	"fmt"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/overlay"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
)

// Snapshot returns the current application state.
func (a *App) Snapshot() store.Snapshot {
	return a.store.Snapshot()
}

// Subscribe registers fn for state changes.
func (a *App) Subscribe(fn func(store.Change, store.Snapshot)) func() {
	return a.store.Subscribe(fn)
}

// Scene describes the map overlay for the frame currently shown.
func (a *App) Scene(zoom float64) overlay.Scene {
	snap := a.store.Snapshot()
	tl := a.player.State()

	in := overlay.Input{
		Frame:        tl.Current,
		Prediction:   tl.IsPrediction,
		Reports:      snap.Reports,
		Location:     snap.Location,
		Nearest:      snap.Nearest,
		Satellite:    snap.MapLayer == store.LayerSatellite,
		SatelliteURL: a.cfg.SatelliteTileURL,
		Zoom:         zoom,
	}
	if a.trails != nil {
		in.Aircraft = a.trails.Latest()
		in.Trails = a.trails.Snapshot()
	}
	return overlay.Build(in)
}

// SetMapLayer persists and applies the map layer preference.
func (a *App) SetMapLayer(_ context.Context, layer string) error {
	if err := a.prefs.SetMapLayer(layer); err != nil {
		return fmt.Errorf("save map layer: %w", err)
	}
	a.store.SetMapLayer(layer)
	return nil
}

// SetTutorialSeen persists and applies the tutorial flag.
func (a *App) SetTutorialSeen(_ context.Context, seen bool) error {
	if err := a.prefs.SetTutorialSeen(seen); err != nil {
		return fmt.Errorf("save tutorial flag: %w", err)
	}
	a.store.SetTutorialSeen(seen)
	return nil
}

func (a *App) Login(ctx context.Context, email, password string) (domain.Session, error) {
	return a.sessions.Login(ctx, email, password)
}

func (a *App) LoginWithGoogle(ctx context.Context, credential string) (domain.Session, error) {
	return a.sessions.LoginWithGoogle(ctx, credential)
}

func (a *App) Register(ctx context.Context, name, email, password string) (domain.Session, error) {
	return a.sessions.Register(ctx, name, email, password)
}

func (a *App) Logout(ctx context.Context) error {
	return a.sessions.Logout(ctx)
}

// SubmitReport posts a ground report as the logged-in user. The report shows
// up in the reports layer on the next poll.
func (a *App) SubmitReport(ctx context.Context, r domain.NewReport) (domain.WeatherReport, error) {
	token := a.store.Token()
	if token == "" {
		return domain.WeatherReport{}, domain.ErrNotLoggedIn
	}
	return a.client.SubmitReport(ctx, token, r)
}

func (a *App) ForgotPassword(ctx context.Context, email string) error {
	return a.client.ForgotPassword(ctx, email)
}

func (a *App) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return a.client.ResetPassword(ctx, resetToken, newPassword)
}

// VAPIDPublicKey returns the key a browser needs to create a push subscription.
func (a *App) VAPIDPublicKey(ctx context.Context) (string, error) {
	return a.client.VAPIDPublicKey(ctx)
}

// SubscribePush registers a push subscription for the logged-in user.
func (a *App) SubscribePush(ctx context.Context, sub domain.PushSubscription) error {
	token := a.store.Token()
	if token == "" {
		return domain.ErrNotLoggedIn
	}
	return a.client.Subscribe(ctx, token, sub)
}

// UnsubscribePush removes the logged-in user's subscription for endpoint.
func (a *App) UnsubscribePush(ctx context.Context, endpoint string) error {
	token := a.store.Token()
	if token == "" {
		return domain.ErrNotLoggedIn
	}
	return a.client.Unsubscribe(ctx, token, endpoint)
}
