package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/fpailes/Avy-weather-server/internal/api/http"
	"github.com/fpailes/Avy-weather-server/internal/cache"
	"github.com/fpailes/Avy-weather-server/internal/config"
	"github.com/fpailes/Avy-weather-server/internal/forecast"
	"github.com/fpailes/Avy-weather-server/internal/render"
	"github.com/fpailes/Avy-weather-server/internal/scheduler"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound render calls.
	httpClient := &http.Client{
		Timeout: cfg.RenderTimeout,
	}

	// Renderer with resilience (backoff + circuit breaker), scraper on top.
	renderer := render.NewHTTPRenderer(httpClient)
	scraper := forecast.NewScraper(renderer, cfg.SourceBaseURL)

	// Per-zone forecast cache; the core of the service.
	fc := cache.New(scraper, cfg.Zones, cfg.CacheTTL)

	// Warm the cache once at startup so the first request rarely pays for a
	// scrape. Failures are per-zone and retried on the next request.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		for zone, res := range fc.GetAll(ctx) {
			if res.Err != nil {
				log.Printf("startup warm failed for %s: %v", zone, res.Err)
			}
		}
	}()

	// Optional background refresher keeping zones warm past the TTL.
	sched := scheduler.New(fc, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "avy-forecast-cache",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// API routes.
	httpapi.RegisterRoutes(app, fc)

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
