package domain

import "errors"

// User is the account returned by GET /auth/me.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is an authenticated login. The token is never serialized.
type Session struct {
	Token string `json:"-"`
	User  User   `json:"user"`
}

// PushSubscription mirrors a Web Push subscription.
type PushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys"`
}

// Notification is the body of POST /api/notifications/send.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// ErrNotLoggedIn is returned by operations that need an active session.
var ErrNotLoggedIn = errors.New("not logged in")
