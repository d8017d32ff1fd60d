// Package server is the composition root: it opens the database, wires the
// dependency graph (repositories → services → handlers), defines the route
// table and runs the HTTP server with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/sakif/appdeck/internal/auth"
	"github.com/sakif/appdeck/internal/handler"
	"github.com/sakif/appdeck/internal/live"
	"github.com/sakif/appdeck/internal/middleware"
	sqliteRepo "github.com/sakif/appdeck/internal/repository/sqlite"
	"github.com/sakif/appdeck/internal/service"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs every token; the server refuses to start without it.
	JWTSecret string

	// GitHub OAuth is optional. With empty credentials the OAuth routes
	// answer 404 and email/password remains the only sign-in path.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// Trending tuning; zero values fall back to 24h / 3 installs.
	TrendingWindow      time.Duration
	TrendingMinInstalls int

	// AllowedOrigins for CORS. Empty means allow all, which suits mobile
	// clients that send no Origin header anyway.
	AllowedOrigins []string
}

// Server owns the router, the database and the live-connection registry.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *live.Registry
}

// New opens the database and assembles the full dependency graph.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("server: JWT secret is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: live.NewRegistry(logger),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GitHub OAuth not configured; /auth/github routes disabled")
	}

	trendingCfg := service.TrendingConfig{
		Window:      s.config.TrendingWindow,
		MinInstalls: s.config.TrendingMinInstalls,
	}

	// One *sqlite.DB implements every repository interface; the services
	// each receive only the slices they need.
	notificationSvc := service.NewNotificationService(s.db, s.registry, s.logger)
	authSvc := service.NewAuthService(s.db, tokens, passwords, s.logger)
	appSvc := service.NewAppService(s.db, s.db, s.db, s.db, s.db, notificationSvc, trendingCfg, s.logger)
	recommendSvc := service.NewRecommendService(s.db, s.db, trendingCfg, s.logger)
	socialSvc := service.NewSocialService(s.db, s.db, s.db, s.db, notificationSvc, s.logger)
	profileSvc := service.NewProfileService(s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, github, s.logger)
	appHandler := handler.NewAppHandler(appSvc, recommendSvc, s.logger)
	socialHandler := handler.NewSocialHandler(socialSvc, profileSvc, recommendSvc, s.logger)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, s.logger)
	liveHandler := live.NewHandler(s.registry, tokens, s.logger)

	// --- global middleware ---
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	// --- OAuth redirect flow (browser-facing, outside /api) ---
	s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	s.router.Route("/api", func(r chi.Router) {
		// Credential endpoints are the brute-force target, so they get a
		// per-IP rate limit on top of bcrypt's own slowness.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/auth/login", authHandler.HandleLogin)
		})

		// Readable while anonymous; a logged-in viewer changes privacy
		// decisions, not availability.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/apps/trending", appHandler.HandleTrending)
			r.Get("/apps/{packageName}", appHandler.HandleDetail)
			r.Get("/apps/{packageName}/comments", appHandler.HandleListComments)
			r.Get("/users/{id}", socialHandler.HandleGetProfile)
			r.Get("/users/{id}/apps", appHandler.HandleUserApps)
		})

		// Everything else needs a valid token.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", authHandler.HandleMe)
			r.Post("/auth/logout", authHandler.HandleLogout)

			r.Post("/apps/sync", appHandler.HandleSync)
			r.Post("/apps/visibility/bulk", appHandler.HandleVisibilityBulk)
			r.Get("/apps/recommended", appHandler.HandleRecommended)
			r.Post("/apps/{packageName}/comments", appHandler.HandleAddComment)

			r.Post("/social/follow/{id}", socialHandler.HandleFollow)
			r.Delete("/social/follow/{id}", socialHandler.HandleUnfollow)
			r.Get("/social/followers", socialHandler.HandleFollowers)
			r.Get("/social/following", socialHandler.HandleFollowing)
			r.Get("/social/discover", socialHandler.HandleDiscover)
			r.Get("/social/requests", socialHandler.HandleListRequests)
			r.Post("/social/requests/{id}/accept", socialHandler.HandleAcceptRequest)
			r.Post("/social/requests/{id}/decline", socialHandler.HandleDeclineRequest)

			r.Post("/users/{id}/like", socialHandler.HandleLike)
			r.Put("/profile", socialHandler.HandleUpdateProfile)

			r.Get("/notifications", notificationHandler.HandleList)
			r.Get("/notifications/unread-count", notificationHandler.HandleUnreadCount)
			r.Put("/notifications/{id}/read", notificationHandler.HandleMarkRead)
			r.Put("/notifications/read-all", notificationHandler.HandleMarkAllRead)
		})
	})

	// The websocket authenticates in-band (first frame), so no middleware.
	s.router.Get("/ws", liveHandler.ServeHTTP)

	return nil
}

func (s *Server) allowedOrigins() []string {
	if len(s.config.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.config.AllowedOrigins
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived websocket
		// connections. Per-message write deadlines live in internal/live.
		IdleTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
