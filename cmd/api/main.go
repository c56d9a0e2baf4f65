// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/capitalize-ai/community-platform/internal/config"
	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/docstore/firestore"
	"github.com/capitalize-ai/community-platform/internal/docstore/memstore"
	"github.com/capitalize-ai/community-platform/internal/docstore/mongostore"
	"github.com/capitalize-ai/community-platform/internal/handler"
	"github.com/capitalize-ai/community-platform/internal/livequery"
	"github.com/capitalize-ai/community-platform/internal/middleware"
	"github.com/capitalize-ai/community-platform/internal/moderation"
	natsclient "github.com/capitalize-ai/community-platform/internal/nats"
	"github.com/capitalize-ai/community-platform/internal/push"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server",
		zap.String("store", cfg.StoreBackend),
		zap.String("auth", cfg.AuthMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "community-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Firebase backs the Firestore store, ID token auth and push
	var app *firebase.App
	if cfg.StoreBackend == config.StoreFirestore || cfg.AuthMode == config.AuthFirebase || cfg.PushEnabled {
		var opts []option.ClientOption
		if cfg.FirebaseCreds != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCreds))
		}
		var fbConfig *firebase.Config
		if cfg.FirebaseProjID != "" {
			fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjID}
		}
		fbApp, err := firebase.NewApp(ctx, fbConfig, opts...)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase: %w", err)
		}
		app = fbApp
	}

	checks := map[string]handler.Check{}

	// Open the document store
	store, err := openStore(ctx, cfg, app, checks)
	if err != nil {
		return err
	}

	// Share live queries across subscribers
	var cache livequery.Cache = livequery.NewMemoryCache(cfg.SnapshotTTL)
	if cfg.RedisAddr != "" {
		redisCache, err := livequery.NewRedisCache(ctx, livequery.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SnapshotTTL,
		})
		if err != nil {
			store.Close()
			return err
		}
		defer redisCache.Close()
		cache = redisCache
		checks["redis"] = redisCache.Ping
	}
	hub := livequery.NewHub(store, cache, log)
	defer hub.Close()

	// Connect to NATS when configured; events are dropped otherwise
	var events service.EventPublisher = service.NopPublisher{}
	var streamManager *natsclient.StreamManager
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			Name:     "community-platform",
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		// Ensure JetStream stream exists
		streamManager = natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return fmt.Errorf("failed to ensure stream: %w", err)
		}
		events = streamManager
		checks["nats"] = func(context.Context) error {
			if !natsClient.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}
	}

	// Initialize content moderation
	moderator, err := newModerator(cfg)
	if err != nil {
		return err
	}

	// Initialize services
	conversationSvc := service.NewConversationService(hub, log)
	notificationSvc := service.NewNotificationService(hub, events, log, cfg.NotificationLimit)
	messageSvc := service.NewMessageService(hub, conversationSvc, events, log,
		service.WithMessageModerator(moderator),
		service.WithMessagePageLimit(cfg.MessagePageLimit),
	)
	deviceSvc := service.NewDeviceService(hub, log)
	services := handler.Services{
		Conversations: conversationSvc,
		Messages:      messageSvc,
		Notifications: notificationSvc,
		Reactions:     service.NewReactionService(hub, notificationSvc, events, log),
		Comments:      service.NewCommentService(hub, notificationSvc, events, moderator, log),
		Posts:         service.NewPostService(hub, moderator, log),
		Users:         service.NewUserService(hub, notificationSvc, log),
		Devices:       deviceSvc,
	}

	// Deliver notifications to devices
	if cfg.PushEnabled {
		if streamManager == nil {
			log.Warn("push enabled without NATS, notifications will not reach devices")
		} else {
			client, err := app.Messaging(ctx)
			if err != nil {
				return fmt.Errorf("failed to open Firebase messaging: %w", err)
			}
			dispatcher := push.NewDispatcher(client, deviceSvc, log)
			cc, err := dispatcher.Start(ctx, streamManager)
			if err != nil {
				return fmt.Errorf("failed to start push dispatcher: %w", err)
			}
			defer cc.Stop()
		}
	}

	verifier, err := newVerifier(ctx, cfg, app)
	if err != nil {
		return err
	}

	router := handler.NewRouter(services, handler.RouterOptions{
		Verifier:          verifier,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Checks:            checks,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// open streams end with the base context
	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, app *firebase.App, checks map[string]handler.Check) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memstore.New(), nil

	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := mongostore.Connect(connectCtx, mongostore.Options{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Username: cfg.MongoUsername,
			Password: cfg.MongoPassword,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(connectCtx); err != nil {
			store.Close()
			return nil, err
		}
		checks["store"] = store.Ping
		return store, nil

	case config.StoreFirestore:
		return firestore.FromApp(ctx, app)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func newModerator(cfg *config.Config) (service.Moderator, error) {
	provider := moderation.Provider(cfg.ModerationProvider)
	opt := moderation.Options{Model: cfg.ModerationModel}
	switch provider {
	case moderation.ProviderOpenAI:
		opt.APIKey = cfg.OpenAIAPIKey
	case moderation.ProviderAnthropic:
		opt.APIKey = cfg.AnthropicAPIKey
	}
	return moderation.New(provider, opt)
}

func newVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (middleware.TokenVerifier, error) {
	switch cfg.AuthMode {
	case config.AuthJWT:
		return middleware.NewJWTVerifier(cfg.JWTSecret), nil
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open Firebase auth: %w", err)
		}
		return middleware.NewFirebaseVerifier(client), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
}
