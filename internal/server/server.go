// Package server contains HTTP and WebSocket handlers for the ledger API.
package server

import (
	"context"
	"errors"
	"time"

	"credledger/internal/bootstrap"
	"credledger/internal/config"
	"credledger/internal/featureflags"
	"credledger/internal/ledger"
	"credledger/internal/middleware"
	"credledger/internal/models"
	"credledger/internal/notifications"
	"credledger/internal/observability"
	"credledger/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	ledger         *ledger.Ledger
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	publishService *service.PublishService
	accountService *service.AccountService
}

// NewServer creates a server over an initialized runtime.
func NewServer(rt *bootstrap.Runtime) *Server {
	middleware.InitMiddleware(rt.Config)

	s := &Server{
		config:         rt.Config,
		db:             rt.DB,
		redis:          rt.Redis,
		promMiddleware: middleware.InitMetrics("credledger-api"),
		ledger:         rt.Ledger,
		hub:            rt.Hub,
		featureFlags:   rt.Flags,
		publishService: service.NewPublishService(rt.Ledger, rt.Store, rt.Oracle),
		accountService: service.NewAccountService(rt.Ledger, rt.ProfileOracle),
	}

	s.app = fiber.New(fiber.Config{
		AppName:   "credledger",
		BodyLimit: 1 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s
}

// App returns the configured fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	writes := func(name string) fiber.Handler {
		return middleware.RateLimit(s.redis, s.config.RateLimitWrites, s.config.RateLimitWindow, name)
	}

	api := app.Group("/api")

	// Public reads; a bearer token only personalizes the response.
	posts := api.Group("/posts", middleware.OptionalAuth)
	posts.Get("/", s.GetPosts)
	posts.Get("/trending", s.GetTrendingPosts)
	// Specific /:id/:resource routes before the generic /:id route
	posts.Get("/:id/content", s.GetPostContent)
	posts.Get("/:id/votes/:voter", s.GetVote)
	posts.Get("/:id", s.GetPost)

	accounts := api.Group("/accounts", middleware.OptionalAuth)
	accounts.Get("/:account/posts", s.GetPostsByAuthor)
	accounts.Get("/:account/following/:followed", s.IsFollowing)
	accounts.Get("/:account/following", s.ListFollowing)
	accounts.Get("/:account/feed", s.GetFollowedPosts)
	accounts.Get("/:account/suggestions", s.SuggestAccounts)
	accounts.Get("/:account", s.GetAccount)

	api.Get("/feed", middleware.OptionalAuth, s.GetFeed)

	// Writes act as the token's subject.
	protected := api.Group("", middleware.AuthRequired)
	protected.Get("/me", s.GetMe)
	protected.Get("/me/feature-flags", s.GetFeatureFlags)
	protected.Post("/me/activate", writes("activate_account"), s.ActivateAccount)
	protected.Post("/posts", writes(ledger.OpCreatePost), s.CreatePost)
	protected.Post("/publish", writes(ledger.OpCreatePost), s.Publish)
	protected.Post("/posts/:id/vote", writes(ledger.OpVotePost), s.VotePost)
	protected.Put("/accounts/:account/follow", writes(ledger.OpFollowUser), s.FollowUser)
	protected.Delete("/accounts/:account/follow", writes(ledger.OpUnfollowUser), s.UnfollowUser)

	app.Get("/ws/events", middleware.WebSocketOptionalAuth, s.upgradeRequired, s.EventStreamHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck reports the state of the journal database and Redis. Redis
// only backs caches and the event bus, so its absence does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "disabled"
	if s.db != nil {
		dbStatus = "healthy"
		sqlDB, err := s.db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "unhealthy"
		}
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"posts": s.ledger.PostCount(),
		"time":  time.Now().UTC(),
	})
}

// Start serves HTTP on the configured port until Shutdown.
func (s *Server) Start() error {
	observability.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones. The runtime
// owns and closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
