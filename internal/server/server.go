package server

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/yeezy-com/stride-track-explore/internal/auth"
	"github.com/yeezy-com/stride-track-explore/internal/config"
	"github.com/yeezy-com/stride-track-explore/internal/course"
	"github.com/yeezy-com/stride-track-explore/internal/db"
	"github.com/yeezy-com/stride-track-explore/internal/records"
	"github.com/yeezy-com/stride-track-explore/internal/stream"
	"github.com/yeezy-com/stride-track-explore/internal/telemetry"
	"github.com/yeezy-com/stride-track-explore/internal/tracking"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Records  records.Store
	Courses  *course.Service
	Tracking *tracking.Service
	Logger   *slog.Logger
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	q := db.FromPool(pool)

	store, err := records.Open(cfg.RecordStore, q, redisClient, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(telemetry.Middleware())

	hub := stream.NewHub(redisClient, log)
	courses := course.NewService(q)
	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       pool,
		Redis:    redisClient,
		Stream:   hub,
		Records:  store,
		Courses:  courses,
		Tracking: tracking.NewService(courses, store, hub, log, trackingOptions(cfg)),
		Logger:   log,
	}

	registerRoutes(s, q)
	log.Info("server: configured", "record_store", cfg.RecordStore, "redis", redisClient != nil, "postgres", pool != nil)
	return s, nil
}

func trackingOptions(cfg config.Config) tracking.Options {
	return tracking.Options{
		CaloriesPerKm:      cfg.CaloriesPerKm,
		OnTrackThresholdKm: cfg.OnTrackThresholdKm,
		TickInterval:       cfg.TickInterval,
		LocationTimeout:    cfg.LocationTimeout,
		SimulatedVitals:    cfg.SimulatedVitals,
	}
}

func registerRoutes(s *Server, q db.Querier) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, q), jwtMiddleware)
	course.RegisterRoutes(s.App.Group("/courses"), s.Courses, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, jwtMiddleware)
	records.RegisterRoutes(s.App.Group("/records"), records.NewService(s.Records), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// Close releases what NewServer created: live sessions first so no ticker
// or subscription outlives the hub, then the relay and the record store.
// Pools passed in by the caller are left to the caller.
func (s *Server) Close() error {
	s.Tracking.Close()
	s.Stream.Close()
	if closer, ok := s.Records.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
