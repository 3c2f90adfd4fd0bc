// Package web serves the HTML pages and form routes, translating browser
// requests into store operations. All business state lives in the stores;
// handlers only assemble page data and redirect.
package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/config"
	"github.com/cinemate/cinemate-web/internal/domain"
	"github.com/cinemate/cinemate-web/internal/logging"
	"github.com/cinemate/cinemate-web/internal/metrics"
	"github.com/cinemate/cinemate-web/internal/ratings"
	"github.com/cinemate/cinemate-web/internal/recommend"
	"github.com/cinemate/cinemate-web/internal/search"
	"github.com/cinemate/cinemate-web/internal/view"
)

// Server wires routing, middleware, and the page handlers over the stores.
type Server struct {
	cfg      config.Config
	client   *api.Client
	ratings  *ratings.Store
	search   *search.Controller
	recs     *recommend.View
	renderer *view.Renderer
	logger   zerolog.Logger
	router   chi.Router
	httpSrv  *http.Server

	mu   sync.Mutex
	user *domain.User
}

// New constructs the web server with base middleware and routes. The session
// expiry hook on the API client is claimed here so an expired upstream
// session logs the user out locally.
func New(cfg config.Config, client *api.Client, ratingStore *ratings.Store, searchCtrl *search.Controller, recView *recommend.View) (*Server, error) {
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		client:   client,
		ratings:  ratingStore,
		search:   searchCtrl,
		recs:     recView,
		renderer: renderer,
		logger:   logging.L().With().Str("component", "web").Logger(),
	}
	client.OnSessionExpired = s.clearUser

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	s.router = r
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/movies", http.StatusFound)
	})

	s.router.Get("/movies", s.handleCatalog)
	s.router.Route("/movies/{id}", func(r chi.Router) {
		r.Get("/", s.handleMovieDetail)
		r.Post("/rate", s.handleRate)
	})
	s.router.Get("/ratings", s.handleMyRatings)
	s.router.Post("/ratings/{id}/delete", s.handleDeleteRating)
	s.router.Get("/recommendations", s.handleRecommendations)

	s.router.Get("/login", s.handleLoginForm)
	s.router.Post("/login", s.handleLogin)
	s.router.Get("/register", s.handleRegisterForm)
	s.router.Post("/register", s.handleRegister)
	s.router.Post("/logout", s.handleLogout)
	s.router.Get("/profile", s.handleProfileForm)
	s.router.Post("/profile", s.handleProfile)

	s.router.Get("/admin", s.handleAdmin)
	s.router.Post("/admin/movies", s.handleAdminCreate)
	s.router.Post("/admin/movies/{id}/edit", s.handleAdminUpdate)
	s.router.Post("/admin/movies/{id}/delete", s.handleAdminDelete)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())
	s.router.Get("/static/app.css", s.handleStylesheet)
}

// requestLogger emits one structured line per request and records the page
// duration histogram, labeled by chi's route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.ObservePage(route, r.Method, ww.Status(), elapsed)
		s.logger.Info().
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Server.Host + ":" + s.cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) currentUser() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Server) setUser(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Server) clearUser() {
	s.setUser(nil)
}

// requireUser redirects anonymous requests to the login page. Returns nil
// after redirecting.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *domain.User {
	u := s.currentUser()
	if u == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil
	}
	return u
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.client.Health(ctx); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("render failed")
	}
}

// redirectOnExpiry sends the browser to the login page when the upstream
// session has lapsed. Reports whether it redirected.
func (s *Server) redirectOnExpiry(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, api.ErrSessionExpired) {
		http.Redirect(w, r, "/login?expired=1", http.StatusFound)
		return true
	}
	return false
}
