package server

import (
	"github.com/erwinnova/umkm-tracker/internal/auth"
	"github.com/erwinnova/umkm-tracker/internal/config"
	"github.com/erwinnova/umkm-tracker/internal/seller"
	"github.com/erwinnova/umkm-tracker/internal/session"
	"github.com/erwinnova/umkm-tracker/internal/stream"
	"github.com/erwinnova/umkm-tracker/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Registry *stream.Registry
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	trackingSvc := tracking.NewService(db)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Registry: stream.NewRegistry(trackingSvc, redisClient),
	}

	registerRoutes(s, trackingSvc)
	return s
}

func registerRoutes(s *Server, trackingSvc *tracking.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	sessions := session.NewService(s.DB)

	seller.RegisterRoutes(s.App.Group("/sellers"), seller.NewService(s.DB, sessions), jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), trackingSvc, sessions, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Registry)
}
