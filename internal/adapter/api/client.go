package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned when the backend rejects the bearer token or credentials.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError carries a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend API error: status %d: %s", e.Code, e.Body)
}

// Unwrap maps 401 responses to ErrUnauthorized.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to the hail-radar backend over JSON/HTTPS.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend client for baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Status fetches GET /api/status.
func (c *Client) Status(ctx context.Context) (domain.Status, error) {
	var st domain.Status
	err := c.do(ctx, "status", http.MethodGet, "/api/status", "", nil, &st)
	return st, err
}

// Images fetches GET /api/images.
func (c *Client) Images(ctx context.Context) (domain.ImageSet, error) {
	var set domain.ImageSet
	err := c.do(ctx, "images", http.MethodGet, "/api/images", "", nil, &set)
	return set, err
}

// Reports fetches the reports of the last hours via GET /api/reports?hours=N.
func (c *Client) Reports(ctx context.Context, hours int) ([]domain.WeatherReport, error) {
	var reports []domain.WeatherReport
	path := "/api/reports?" + url.Values{"hours": {strconv.Itoa(hours)}}.Encode()
	err := c.do(ctx, "reports", http.MethodGet, path, "", nil, &reports)
	return reports, err
}

// SubmitReport posts a new crowdsourced report.
func (c *Client) SubmitReport(ctx context.Context, token string, r domain.NewReport) (domain.WeatherReport, error) {
	var created domain.WeatherReport
	err := c.do(ctx, "submit_report", http.MethodPost, "/api/reports", token, r, &created)
	return created, err
}

// tokenResponse is the body returned by the login endpoints.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        domain.User `json:"user"`
}

func (t tokenResponse) session() (domain.Session, error) {
	if t.AccessToken == "" {
		return domain.Session{}, errors.New("login response missing access_token")
	}
	return domain.Session{Token: t.AccessToken, User: t.User}, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Session, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.session()
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, name, email, password string) (domain.Session, error) {
	var resp tokenResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, "register", http.MethodPost, "/auth/register", "", body, &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.session()
}

// GoogleLogin exchanges a Google ID token credential for a session.
func (c *Client) GoogleLogin(ctx context.Context, credential string) (domain.Session, error) {
	var resp tokenResponse
	body := map[string]string{"credential": credential}
	if err := c.do(ctx, "google_login", http.MethodPost, "/auth/google", "", body, &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.session()
}

// ForgotPassword asks the backend to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, "forgot_password", http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	body := map[string]string{"token": resetToken, "new_password": newPassword}
	return c.do(ctx, "reset_password", http.MethodPost, "/auth/reset-password", "", body, nil)
}

// Me returns the account behind token.
func (c *Client) Me(ctx context.Context, token string) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, "me", http.MethodGet, "/auth/me", token, nil, &u)
	return u, err
}

// UpdateLocation reports the user's position for server-side proximity alerts.
func (c *Client) UpdateLocation(ctx context.Context, token string, loc domain.UserLocation) error {
	body := map[string]float64{"latitude": loc.Lat, "longitude": loc.Lon}
	return c.do(ctx, "update_location", http.MethodPost, "/auth/location", token, body, nil)
}

// VAPIDPublicKey returns the Web Push application server key.
func (c *Client) VAPIDPublicKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, "vapid_key", http.MethodGet, "/api/notifications/vapid-public-key", "", nil, &resp); err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

// Subscribe registers a push subscription for the session's user.
func (c *Client) Subscribe(ctx context.Context, token string, sub domain.PushSubscription) error {
	return c.do(ctx, "subscribe", http.MethodPost, "/api/notifications/subscribe", token, sub, nil)
}

// Unsubscribe removes the push subscription with the given endpoint.
func (c *Client) Unsubscribe(ctx context.Context, token, endpoint string) error {
	body := map[string]string{"endpoint": endpoint}
	return c.do(ctx, "unsubscribe", http.MethodDelete, "/api/notifications/subscribe", token, body, nil)
}

// SendNotification asks the backend to push n to the session's devices.
func (c *Client) SendNotification(ctx context.Context, token string, n domain.Notification) error {
	return c.do(ctx, "send_notification", http.MethodPost, "/api/notifications/send", token, n, nil)
}

// do issues one JSON request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, endpoint, method, path, token string, in, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, token, in, out)
	c.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
		c.logger.Debug("backend request failed", "endpoint", endpoint, "error", err)
	}
	c.metrics.APIRequests.WithLabelValues(endpoint, outcome).Inc()
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
