package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/changefeed"
	"github.com/25x8/recyclemart/internal/recyclemart/config"
	"github.com/25x8/recyclemart/internal/recyclemart/handlers"
	"github.com/25x8/recyclemart/internal/recyclemart/middleware"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/ratelimit"
	"github.com/25x8/recyclemart/internal/recyclemart/realtime"
	"github.com/25x8/recyclemart/internal/recyclemart/repository"
	"github.com/25x8/recyclemart/internal/recyclemart/service"
	"github.com/25x8/recyclemart/internal/recyclemart/storage"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	log        *zap.Logger
	repo       repository.Repository
	feed       changefeed.Feed
	hub        *realtime.Hub
	refresher  *service.Refresher
	limiter    *ratelimit.Limiter
	handler    *handlers.Handler
	router     http.Handler
	httpServer *http.Server
}

// NewServer creates a new server
func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		log: log,
	}
}

// Init connects backing services and builds the router
func (s *Server) Init(ctx context.Context) error {
	// Initialize repository
	if s.cfg.DatabaseURI == "" {
		s.log.Warn("DATABASE_URI not set, using in-memory repository")
		s.repo = repository.NewMemoryRepository()
	} else {
		s.repo = repository.NewPostgresRepository()
	}
	if err := s.repo.InitDB(s.cfg.DatabaseURI); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	// Change feed
	if s.cfg.RedisAddr != "" {
		feed, err := changefeed.NewRedisFeed(ctx, s.cfg.RedisAddr, s.cfg.RedisChannel, s.log)
		if err != nil {
			return fmt.Errorf("connect change feed: %w", err)
		}
		s.feed = feed
	} else {
		s.feed = changefeed.NewLocalFeed(s.log)
	}

	// Photo storage
	var photos storage.PhotoUploader
	if s.cfg.S3Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, s.cfg.S3Bucket, s.cfg.S3Region, s.log)
		if err != nil {
			return fmt.Errorf("init photo storage: %w", err)
		}
		photos = uploader
	} else {
		s.log.Warn("S3_BUCKET not set, photo uploads disabled")
	}

	// Services
	pricing := service.DefaultRateTable()
	for category, rate := range s.cfg.CreditRates {
		pricing.Rates[category] = rate
	}
	ledger := service.LedgerPolicy{
		PendingEstimate:  s.cfg.PendingEstimate,
		MinPayoutCredits: s.cfg.MinPayoutCredits,
	}
	cache := service.NewProjectionCache(s.cfg.CacheTTL)
	waste := service.NewWasteService(s.repo, pricing, ledger, s.feed, cache, s.log)
	stats := service.NewStatsService(s.repo, s.repo, cache, s.log)

	s.hub = realtime.NewHub(s.log)
	s.refresher = service.NewRefresher(stats, waste, s.feed, s.hub, s.cfg.StatsRefresh, s.log)
	if err := s.refresher.Start(ctx); err != nil {
		return err
	}

	s.limiter = ratelimit.New(ratelimit.DefaultPolicies(), s.log)
	s.handler = &handlers.Handler{
		Repo:        s.repo,
		Waste:       waste,
		Stats:       stats,
		Hub:         s.hub,
		Photos:      photos,
		JWTSecret:   s.cfg.JWTSecret,
		AdminLogins: s.cfg.AdminSet(),
		Log:         s.log.With(zap.String("component", "handlers")),
	}
	s.router = s.routes()

	return nil
}

// Handler returns the router; Init must have been called
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() http.Handler {
	h := s.handler
	auth := middleware.AuthMiddleware(&middleware.JWTConfig{
		SecretKey: s.cfg.JWTSecret,
		Users:     s.repo,
	})
	staff := middleware.RequireRole(models.RoleController, models.RoleAdmin)

	r := chi.NewRouter()

	// Basic middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/user", func(r chi.Router) {
			r.With(s.limiter.Middleware(ratelimit.ActionRegister, ratelimit.ClientIP)).Post("/register", h.RegisterUser)
			r.With(s.limiter.Middleware(ratelimit.ActionLogin, ratelimit.ClientIP)).Post("/login", h.LoginUser)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Get("/credits", h.GetCredits)
				r.Get("/history", h.GetHistory)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/centers", h.ListCenters)
			r.Get("/stats/assessments", h.AssessmentStats)
			r.Get("/ws", h.Realtime)

			r.With(s.limiter.Middleware(ratelimit.ActionSubmit, userSubject)).Post("/waste", h.SubmitWaste)
			r.With(s.limiter.Middleware(ratelimit.ActionUpload, userSubject)).Post("/uploads/photo", h.UploadPhoto)
			r.Patch("/records/{id}/status", h.UpdateRecordStatus)

			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Get("/assessments/pending", h.PendingAssessments)
				r.Post("/assessments", h.AssessRecord)
				r.Post("/assessments/bulk", h.BulkAssess)
				r.Post("/marshal-deliveries/{id}/assessment", h.AssessDelivery)
			})

			r.With(middleware.RequireRole(models.RoleMarshal, models.RoleAdmin)).Post("/marshals", h.RegisterMarshal)
			r.With(middleware.RequireRole(models.RoleMarshal, models.RoleController, models.RoleAdmin)).
				Post("/marshal-deliveries", h.LogDelivery)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Post("/centers", h.CreateCenter)
				r.Get("/records", h.RecordsInRange)
			})
		})
	})

	return r
}

// userSubject keys rate limits by the authenticated user, falling back to IP
func userSubject(r *http.Request) string {
	if a, ok := middleware.GetActor(r.Context()); ok {
		return a.UserID.String()
	}
	return ratelimit.ClientIP(r)
}

// Run starts the HTTP server
func (s *Server) Run(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              s.cfg.RunAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	s.log.Info("starting server", zap.String("addr", s.cfg.RunAddress))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Shutdown HTTP server
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	// Stop background work
	if s.refresher != nil {
		s.refresher.Stop()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.feed != nil {
		if err := s.feed.Close(); err != nil {
			s.log.Warn("close change feed", zap.Error(err))
		}
	}

	// Close repository
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			return err
		}
	}

	return nil
}
