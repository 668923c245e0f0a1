package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ngoclaithe/mncr-live/internal/call"
	"github.com/ngoclaithe/mncr-live/internal/config"
	"github.com/ngoclaithe/mncr-live/internal/handler"
	"github.com/ngoclaithe/mncr-live/internal/hub"
	"github.com/ngoclaithe/mncr-live/internal/ingest"
	"github.com/ngoclaithe/mncr-live/internal/kafka"
	"github.com/ngoclaithe/mncr-live/internal/registry"
	"github.com/ngoclaithe/mncr-live/internal/service"
	"github.com/ngoclaithe/mncr-live/internal/status"
	"github.com/ngoclaithe/mncr-live/pkg/jwt"
	pkglog "github.com/ngoclaithe/mncr-live/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "mncr-live",
	})
	logger := pkglog.L()

	// Ensure HLS output directory exists
	if err := os.MkdirAll(cfg.Transcoder.OutputDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create HLS output directory")
	}

	// Initialize broadcast status store
	var statusStore status.Store
	if cfg.Redis.Enabled {
		store, err := status.NewRedisStore(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		statusStore = store
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis status store connected")
	} else {
		statusStore = status.NewMemoryStore()
		logger.Info().Msg("using in-memory status store")
	}
	defer statusStore.Close()

	// Initialize Kafka producer if enabled
	var producer kafka.BroadcastEventProducer
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		producer = p
		defer p.Close()
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka producer connected")
	}

	// Initialize connection hub
	h := hub.NewHub(cfg.WebSocket)
	go h.Run()

	// Initialize room registry and stream service
	reg := registry.New()
	spawn := ingest.NewSpawner(cfg.Transcoder, cfg.Ingest.BufferLowWater)
	streamSvc := service.NewStreamService(h, reg, cfg.Ingest, cfg.Transcoder, spawn, statusStore, producer)
	defer streamSvc.Close()

	// Initialize call coordinator
	verifier := jwt.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	coordinator := call.NewCoordinator(h, verifier)

	// Initialize handlers
	wsHandler := handler.NewWSHandler(h, streamSvc, coordinator)
	httpHandler := handler.NewHTTPHandler(streamSvc, coordinator, cfg.ICE)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/ws", func(c *gin.Context) {
		wsHandler.HandleWebSocket(c.Writer, c.Request)
	})
	httpHandler.RegisterRoutes(r, cfg.Transcoder)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("live service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down live service")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("live service stopped")
}
