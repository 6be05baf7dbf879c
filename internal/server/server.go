package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lisalisi-cash/lisalisi_cash/internal/config"
	"github.com/lisalisi-cash/lisalisi_cash/internal/metrics"
	"github.com/lisalisi-cash/lisalisi_cash/internal/routes"
)

// Server wraps the Fiber application and the wired services.
type Server struct {
	app  *fiber.App
	cfg  config.Config
	svcs *routes.Services
}

// New instantiates the HTTP server and delegates wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger, m *metrics.Metrics) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	svcs, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Metrics: m})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, svcs: svcs}, nil
}

// Services exposes the wired business services for scheduled work.
func (s *Server) Services() *routes.Services {
	return s.svcs
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
