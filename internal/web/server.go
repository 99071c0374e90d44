package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/auth"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/config"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/maintenance"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/web/handlers"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/web/middleware"
)

// Login attempts allowed per client before throttling, and the refill rate.
const (
	loginBurst    = 5
	loginInterval = 12 * time.Second
)

// Server represents the web server
type Server struct {
	db          *database.DB
	cfg         config.ServerConfig
	router      *chi.Mux
	authService *auth.AuthService
	scheduler   *maintenance.Scheduler
	handlers    *handlers.Handlers
	loginLimit  *middleware.RateLimiter
}

// NewServer creates a new web server. scheduler may be nil.
func NewServer(db *database.DB, authService *auth.AuthService, scheduler *maintenance.Scheduler, cfg config.ServerConfig) *Server {
	s := &Server{
		db:          db,
		cfg:         cfg,
		router:      chi.NewRouter(),
		authService: authService,
		scheduler:   scheduler,
		handlers:    handlers.New(db, authService, scheduler, cfg.SecureCookie),
		loginLimit:  middleware.NewRateLimiter(loginInterval, loginBurst),
	}
	s.setupRoutes()
	return s
}

// SetVersionInfo sets the build information reported by /api/health.
func (s *Server) SetVersionInfo(version, commit, date string) {
	s.handlers.SetVersionInfo(version, commit, date)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router
	h := s.handlers

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.cfg.Timeouts.RequestTimeout()))
	r.Use(middleware.CORS(s.cfg.AllowedOrigins))
	r.Use(middleware.SessionAuth(s.authService))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	admin := middleware.RequireAdmin(handlers.JSONError)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.loginLimit.Middleware(handlers.JSONError)).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Put("/password", h.ChangePassword)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ProductsList)
			r.Get("/slug/{slug}", h.ProductBySlug)
			r.Get("/{id}", h.ProductGet)
			r.Get("/{id}/reviews", h.ProductReviews)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.ProductCreate)
				r.Put("/{id}", h.ProductUpdate)
				r.Patch("/{id}", h.ProductUpdate)
				r.Delete("/{id}", h.ProductDelete)
				r.Post("/{id}/stock", h.ProductAdjustStock)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.CategoriesList)
			r.Get("/{id}", h.CategoryGet)
			r.Get("/slug/{slug}/products", h.CategoryProducts)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.CategoryCreate)
				r.Put("/{id}", h.CategoryUpdate)
				r.Patch("/{id}", h.CategoryUpdate)
				r.Delete("/{id}", h.CategoryDelete)
			})
		})

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", h.CollectionsList)
			r.Get("/slug/{slug}", h.CollectionBySlug)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.CollectionCreate)
				r.Put("/{id}", h.CollectionUpdate)
				r.Patch("/{id}", h.CollectionUpdate)
				r.Delete("/{id}", h.CollectionDelete)
				r.Put("/{id}/products", h.CollectionSetProducts)
			})
		})

		r.Route("/gallery", func(r chi.Router) {
			r.Get("/", h.GalleryList)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.GalleryCreate)
				r.Put("/{id}", h.GalleryUpdate)
				r.Patch("/{id}", h.GalleryUpdate)
				r.Delete("/{id}", h.GalleryDelete)
			})
		})

		r.Route("/faqs", func(r chi.Router) {
			r.Get("/", h.FAQsList)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.FAQCreate)
				r.Put("/{id}", h.FAQUpdate)
				r.Patch("/{id}", h.FAQUpdate)
				r.Delete("/{id}", h.FAQDelete)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", h.ReviewSubmit)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/pending", h.ReviewsPending)
				r.Put("/{id}/approval", h.ReviewSetApproved)
				r.Delete("/{id}", h.ReviewDelete)
			})
		})

		r.Route("/inquiries", func(r chi.Router) {
			r.Post("/", h.InquirySubmit)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/", h.InquiriesList)
				r.Get("/{id}", h.InquiryGet)
				r.Put("/{id}/status", h.InquirySetStatus)
				r.Delete("/{id}", h.InquiryDelete)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.OrderPlace)
			r.Get("/track/{reference}", h.OrderTrack)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/", h.OrdersList)
				r.Get("/stats", h.OrderStats)
				r.Get("/{id}", h.OrderGet)
				r.Put("/{id}/status", h.OrderUpdateStatus)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(admin)
			r.Get("/", h.UsersList)
			r.Post("/", h.UserCreate)
			r.Get("/{id}", h.UserGet)
			r.Put("/{id}", h.UserUpdate)
			r.Patch("/{id}", h.UserUpdate)
			r.Delete("/{id}", h.UserDelete)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.SettingsGet)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Put("/", h.SettingsUpdate)
				r.Delete("/{key}", h.SettingDelete)
			})
		})

		r.With(admin).Post("/maintenance/{job}", h.MaintenanceRun)
	})
}

// Start starts the web server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	t := s.cfg.Timeouts
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: t.ReadHeaderTimeout(),
		ReadTimeout:       t.ReadTimeout(),
		WriteTimeout:      t.WriteTimeout(),
		IdleTimeout:       t.IdleTimeout(),
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), t.ShutdownTimeout())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
