package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/couchcryptid/storm-radar-watch/internal/overlay"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/couchcryptid/storm-radar-watch/internal/timeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the application surface exposed over HTTP.
type Service interface {
	Snapshot() store.Snapshot
	Subscribe(fn func(store.Change, store.Snapshot)) func()
	Scene(zoom float64) overlay.Scene

	SetMapLayer(ctx context.Context, layer string) error
	SetTutorialSeen(ctx context.Context, seen bool) error

	Login(ctx context.Context, email, password string) (domain.Session, error)
	LoginWithGoogle(ctx context.Context, credential string) (domain.Session, error)
	Register(ctx context.Context, name, email, password string) (domain.Session, error)
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error

	VAPIDPublicKey(ctx context.Context) (string, error)
	SubscribePush(ctx context.Context, sub domain.PushSubscription) error
	UnsubscribePush(ctx context.Context, endpoint string) error

	SubmitReport(ctx context.Context, r domain.NewReport) (domain.WeatherReport, error)
}

// Player controls frame playback.
type Player interface {
	State() timeline.State
	OnChange(fn func(timeline.State))
	Play()
	Pause()
	Toggle()
	Seek(i int)
	Step(delta int)
	JumpToNow()
	BeginDrag()
	Drag(value float64)
	EndDrag()
}

// Server exposes health, metrics, the local control API and the state stream.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	svc        Service
	player     Player
	hub        *hub
	logger     *slog.Logger

	mu      sync.Mutex
	stopHub context.CancelFunc
}

// NewServer wires the routes. corsOrigins lists allowed browser origins.
func NewServer(addr string, corsOrigins []string, svc Service, player Player, ready sharedobs.ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     router,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		router: router,
		svc:    svc,
		player: player,
		hub:    newHub(metrics.WebSocketClients, logger),
		logger: logger,
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", sharedobs.LivenessHandler())
	router.Get("/readyz", sharedobs.ReadinessHandler(ready))
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/ws", s.hub.serveWS)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/state", s.handleState)
		r.Get("/layers", s.handleLayers)

		r.Route("/timeline", func(r chi.Router) {
			r.Post("/play", s.timelineAction(player.Play))
			r.Post("/pause", s.timelineAction(player.Pause))
			r.Post("/toggle", s.timelineAction(player.Toggle))
			r.Post("/now", s.timelineAction(player.JumpToNow))
			r.Post("/step", s.handleStep)
			r.Post("/seek", s.handleSeek)
			r.Post("/drag", s.handleDrag)
			r.Post("/commit", s.timelineAction(player.EndDrag))
		})

		r.Put("/preferences/layer", s.handleSetLayer)
		r.Post("/preferences/tutorial", s.handleSetTutorial)

		r.Route("/session", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/logout", s.handleLogout)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/vapid-key", s.handleVAPIDKey)
			r.Post("/subscribe", s.handleSubscribe)
			r.Delete("/subscribe", s.handleUnsubscribe)
		})

		r.Post("/reports", s.handleSubmitReport)
	})

	svc.Subscribe(func(c store.Change, snap store.Snapshot) {
		s.hub.publish(event{Type: "state", Change: string(c), Data: stateView{Snapshot: snap, Timeline: player.State()}})
	})
	player.OnChange(func(st timeline.State) {
		s.hub.publish(event{Type: "timeline", Data: st})
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.stopHub = cancel
	s.mu.Unlock()
	go s.hub.run(ctx)

	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	stop := s.stopHub
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
