package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/config"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/notification"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/repository"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/server"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Starting Lesson Ledger Service...")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize OpenTelemetry (for Grafana Cloud)
	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		PathPrefix:     "/otlp",
		OTLPHeaders:    telemetry.BasicAuthHeaders(cfg.OTEL.InstanceID, cfg.OTEL.Token),
		Enabled:        cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	}
	if otelProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProvider.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
	}
	metrics := telemetry.NewLedgerMetrics()

	backend, err := server.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s ledger: %v", cfg.Ledger.Backend, err)
	}
	defer backend.Close()

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()

	// Ping Redis to verify connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("✓ Redis connected")

	// Low-credit notifications go through the outbox; the dispatcher hands
	// them to FCM when Firebase is configured, else to the log.
	var delivery domain.NotificationSink = notification.LogSink{}
	var pushTokens domain.PushTokenRepository
	if backend.MongoDB != nil {
		pushTokens = repository.NewMongoPushTokenRepository(backend.MongoDB)
	}
	if cfg.Firebase.Enabled() {
		if pushTokens == nil {
			log.Fatalf("Push delivery needs the mongo backend for device tokens")
		}
		firebaseApp, err := notification.InitFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.PrivateKey, cfg.Firebase.ClientEmail)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		fcm, err := notification.NewFCMSink(ctx, firebaseApp, pushTokens)
		if err != nil {
			log.Fatalf("Failed to get Firebase Messaging client: %v", err)
		}
		delivery = fcm
		log.Println("✓ Firebase initialized")
	}

	outbox := notification.NewRedisOutbox(redisClient, notification.DefaultOutboxKey)
	if err := metrics.ObserveOutboxDepth(outbox.Len); err != nil {
		log.Printf("Warning: outbox depth gauge: %v", err)
	}
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		notification.NewDispatcher(outbox, delivery).Run(ctx)
	}()

	// Initialize App using Server package
	app := server.NewApp(server.AppDependencies{
		Config:      cfg,
		Store:       backend.Store,
		Members:     backend.Members,
		RedisClient: redisClient,
		Sink:        outbox,
		PushTokens:  pushTokens,
		Metrics:     metrics,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	// Start server
	log.Printf("🚀 Server starting on port %s (%s ledger, %s)", cfg.Server.Port, cfg.Ledger.Backend, cfg.Ledger.Timezone)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Printf("Server stopped: %v", err)
	}

	stop()
	<-dispatcherDone
}
