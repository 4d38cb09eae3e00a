package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/couchcryptid/storm-radar-watch/internal/adapter/api"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/couchcryptid/storm-radar-watch/internal/timeline"
)

const maxBodyBytes = 64 << 10

// stateView is the body of GET /api/state and of "state" stream events.
type stateView struct {
	store.Snapshot
	Timeline timeline.State `json:"timeline"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateView{Snapshot: s.svc.Snapshot(), Timeline: s.player.State()})
}

// handleLayers returns the overlay as GeoJSON, or as layer descriptions with
// ?format=scene. ?zoom scales aircraft markers.
func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	zoom := 8.0
	if z := r.URL.Query().Get("zoom"); z != "" {
		v, err := strconv.ParseFloat(z, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "zoom must be a number")
			return
		}
		zoom = v
	}

	scene := s.svc.Scene(zoom)
	if r.URL.Query().Get("format") == "scene" {
		writeJSON(w, http.StatusOK, scene)
		return
	}

	data, err := scene.FeatureCollection().MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode layers")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) timelineAction(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fn()
		writeJSON(w, http.StatusOK, s.player.State())
	}
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		req.Delta = 1
	}
	s.player.Step(req.Delta)
	writeJSON(w, http.StatusOK, s.player.State())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return
	}
	s.player.Seek(*req.Index)
	writeJSON(w, http.StatusOK, s.player.State())
}

// handleDrag moves the scrubber. The first drag of a gesture pauses playback.
func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	if !s.player.State().Dragging {
		s.player.BeginDrag()
	}
	s.player.Drag(*req.Value)
	writeJSON(w, http.StatusOK, s.player.State())
}

func (s *Server) handleSetLayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Layer string `json:"layer"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Layer != store.LayerStandard && req.Layer != store.LayerSatellite {
		writeError(w, http.StatusBadRequest, "layer must be standard or satellite")
		return
	}
	if err := s.svc.SetMapLayer(r.Context(), req.Layer); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetTutorial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seen bool `json:"seen"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.svc.SetTutorialSeen(r.Context(), req.Seen); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogin accepts either email/password or a Google credential.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		Credential string `json:"credential"`
	}
	if !decode(w, r, &req) {
		return
	}

	var (
		sess domain.Session
		err  error
	)
	switch {
	case req.Credential != "":
		sess, err = s.svc.LoginWithGoogle(r.Context(), req.Credential)
	case req.Email != "" && req.Password != "":
		sess, err = s.svc.Login(r.Context(), req.Email, req.Password)
	default:
		writeError(w, http.StatusBadRequest, "email and password, or credential, are required")
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	sess, err := s.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Logout(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := s.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "token and new_password are required")
		return
	}
	if err := s.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVAPIDKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.svc.VAPIDPublicKey(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": key})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var sub domain.PushSubscription
	if !decode(w, r, &sub) {
		return
	}
	if sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if err := s.svc.SubscribePush(r.Context(), sub); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if err := s.svc.UnsubscribePush(r.Context(), req.Endpoint); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req domain.NewReport
	if !decode(w, r, &req) {
		return
	}
	if !req.Valid() {
		writeError(w, http.StatusBadRequest, "invalid report type or coordinates")
		return
	}
	created, err := s.svc.SubmitReport(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// fail maps a service error to a response. Backend 4xx responses pass
// through; anything else is a bad gateway.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var se *api.StatusError
	switch {
	case errors.Is(err, domain.ErrNotLoggedIn), errors.Is(err, api.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		writeError(w, se.Code, se.Body)
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
