package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// TokenSource yields the current session token, or "" when logged out.
type TokenSource interface {
	Token() string
}

// PushPublisher delivers proximity alerts through the backend's push endpoint.
type PushPublisher struct {
	client *Client
	tokens TokenSource
}

// NewPushPublisher creates a publisher that pushes as the logged-in user.
func NewPushPublisher(client *Client, tokens TokenSource) *PushPublisher {
	return &PushPublisher{client: client, tokens: tokens}
}

// Name identifies the publisher in metrics and logs.
func (p *PushPublisher) Name() string { return "push" }

// Publish sends the alert as a push notification. Without a session there is
// nobody to notify and the call fails.
func (p *PushPublisher) Publish(ctx context.Context, alert domain.ProximityAlert) error {
	token := p.tokens.Token()
	if token == "" {
		return errors.New("push alert requires an active session")
	}
	return p.client.SendNotification(ctx, token, notificationFor(alert))
}

func notificationFor(alert domain.ProximityAlert) domain.Notification {
	return domain.Notification{
		Title: fmt.Sprintf("Storm %.0f km away", alert.DistanceKm),
		Body: fmt.Sprintf("A %s cell (%.0f dBZ) is within %.0f km of your location.",
			alert.Intensity.Level, alert.Cell.MaxDBZ, alert.DistanceKm),
		URL: "/",
	}
}
