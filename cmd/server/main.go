package main

import (
	"coin_portal/internal/api"     // HTTP handlers and routes
	"coin_portal/internal/config"  // Custom package for configuration
	"coin_portal/internal/db"      // Database connection
	"coin_portal/internal/events"  // Ledger event publishing
	"coin_portal/internal/ledger"  // Ledger core
	"coin_portal/internal/metrics" // Prometheus counters
	"coin_portal/internal/stream"  // Live change fan-out
	"coin_portal/internal/utils"   // Redis cache
	"context"                      // context package is needed for Redis operations and shutdown
	"errors"                       // Server close detection
	"net/http"                     // HTTP server
	"os"                           // Process signals
	"os/signal"                    // Graceful shutdown
	"syscall"                      // SIGTERM
	"time"                         // Timeouts

	"github.com/gin-gonic/gin"                                  // Gin web framework
	"github.com/prometheus/client_golang/prometheus"            // Metrics registry
	"github.com/prometheus/client_golang/prometheus/collectors" // Runtime collectors
	"github.com/prometheus/client_golang/prometheus/promhttp"   // Metrics endpoint
	"github.com/redis/go-redis/v9"                              // Redis client
	"github.com/robfig/cron/v3"                                 // Scheduled settings reload
	"github.com/sirupsen/logrus"                                // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	log := logrus.WithField("service", "coin_portal")

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	database, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client when configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}

	settings, err := ledger.LoadSettings(ctx, database)
	if err != nil {
		log.Fatalf("failed to load settings, run the migrate command first: %v", err)
	}

	// Live changes go to the local hub, and through Redis to every other instance
	hub := stream.NewHub(log)
	var changes stream.Publisher = hub
	if redisClient != nil {
		relay := stream.NewRedisRelay(redisClient, hub, log)
		go relay.Run(ctx)
		changes = relay
	}

	publisher := events.Connect(cfg.AMQPURL, cfg.LedgerExchange, log)
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := ledger.New(ledger.Deps{
		DB:       database,
		Settings: settings,
		Stream:   changes,
		Events:   publisher,
		Cache:    utils.NewCache(redisClient, time.Minute),
		Metrics:  metrics.NewLedgerMetrics(registry),
		Log:      log,
	})

	// Pick up settings changed through another instance
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SettingsRefresh, func() {
		if err := settings.Reload(ctx); err != nil {
			log.WithError(err).Warn("Failed to reload settings")
		}
	}); err != nil {
		log.Fatalf("invalid SETTINGS_REFRESH %q: %v", cfg.SettingsRefresh, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		log.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.RegisterRoutes(r, svc, hub, cfg.JWTSecret)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
