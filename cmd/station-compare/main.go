package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.bug.st/serial"

	httpapi "github.com/icheolgyu/station-compare/internal/api/http"
	"github.com/icheolgyu/station-compare/internal/collector"
	"github.com/icheolgyu/station-compare/internal/config"
	"github.com/icheolgyu/station-compare/internal/scheduler"
	"github.com/icheolgyu/station-compare/internal/store"
	"github.com/icheolgyu/station-compare/internal/weather"
)

func main() {
	// Load configuration (.env handled inside).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Collectors stop when this context does.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SQLite store shared by collectors and request handlers.
	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	// Shared HTTP client for outbound KMA calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Remote collectors, scheduled on wall-clock boundaries.
	var realtime, hourly scheduler.Collector
	if cfg.KMAAuthKey == "" {
		log.Println("INFO: KMA_AUTH_KEY not set; remote collectors disabled")
	} else {
		realtime = collector.NewNearRealTimeCollector(httpClient, db, cfg.KMAAuthKey, cfg.StationID, cfg.NearRealTimeURL)
		hourly = collector.NewHourlyCollector(httpClient, db, cfg.KMAAuthKey, cfg.StationID, cfg.HourlyURL)
	}

	sched := scheduler.New(realtime, hourly)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Sensor collector reading the serial-attached device.
	if cfg.SerialPort == "" {
		log.Println("INFO: SERIAL_PORT not set; sensor collector disabled")
	} else {
		opener := func() (io.ReadCloser, error) {
			return serial.Open(cfg.SerialPort, &serial.Mode{BaudRate: cfg.SerialBaud})
		}
		go collector.NewSensorCollector(db, opener).Run(ctx)
	}

	// Read side.
	service := weather.NewService(db, time.Now)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "station-compare",
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

	// Basic health endpoint. The start time is an explicit value, not
	// package state.
	startedAt := time.Now()
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "station-compare",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
		})
	})

	// API routes.
	disabled := map[weather.Category]bool{}
	if cfg.DisablePressure {
		disabled[weather.CategoryPressure] = true
	}
	httpapi.RegisterRoutes(app, service, disabled)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
