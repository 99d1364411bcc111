package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/room4-2/callintake/callflow"
	"github.com/room4-2/callintake/config"
	"github.com/room4-2/callintake/engine"
	"github.com/room4-2/callintake/gemini"
	"github.com/room4-2/callintake/notify"
	"github.com/room4-2/callintake/profile"
	"github.com/room4-2/callintake/server"
	"github.com/room4-2/callintake/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// run returns instead of exiting so deferred cleanup and log flushing happen.
func run() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profileKey := cfg.BusinessProfile
	if profileKey == "" {
		profileKey = profile.ForFlow(cfg.Flow)
	}
	biz, err := profile.Get(profileKey)
	if err != nil {
		return fmt.Errorf("business profile: %w", err)
	}

	flow, err := callflow.Lookup(cfg.Flow, biz.Name, cfg.MaxAttempts)
	if err != nil {
		return fmt.Errorf("flow: %w", err)
	}

	redisClient := connectRedis(ctx, cfg, logger)
	closeRedis := redisClient != nil
	defer func() {
		if closeRedis {
			_ = redisClient.Close()
		}
	}()

	// Create session manager
	storeOpts := []session.StoreOption{session.WithRedisTTL(cfg.SessionTimeout)}
	storeType := session.StoreType(cfg.StoreType)
	if storeType == session.StoreTypeRedis {
		if redisClient == nil {
			return fmt.Errorf("STORE_TYPE=redis but Redis at %s is unavailable", cfg.RedisURL)
		}
		storeOpts = append(storeOpts, session.WithRedisClient(redisClient))
	}
	store, err := session.NewStore(storeType, storeOpts...)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	sessionManager := session.NewManager(cfg, store, logger)
	// The Redis store owns the client from here on.
	closeRedis = closeRedis && storeType != session.StoreTypeRedis

	// Start cleanup routine
	go sessionManager.StartCleanupRoutine(ctx)

	publishers := notify.Multi{notify.NewLogPublisher(logger)}
	if cfg.EventsChannel != "" && redisClient != nil {
		publishers = append(publishers, notify.NewRedisPublisher(redisClient, cfg.EventsChannel))
	}
	if cfg.SMSEnabled() {
		publishers = append(publishers, notify.NewSMSPublisher(notify.SignalWireConfig{
			ProjectID: cfg.SignalWireProjectID,
			Token:     cfg.SignalWireToken,
			Space:     cfg.SignalWireSpace,
			From:      cfg.SignalWireFrom,
		}, biz.Name))
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPublisher(publishers),
		engine.WithRephraseTimeout(cfg.RephraseTimeout),
	}
	if cfg.GeminiAPIKey != "" {
		rephraser, err := gemini.NewRephraser(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, biz)
		if err != nil {
			logger.Warn("⚠️ Gemini unavailable, using flow prompts as written", zap.Error(err))
		} else {
			engineOpts = append(engineOpts, engine.WithEnhancer(rephraser))
		}
	}
	eng := engine.New(flow, sessionManager, engineOpts...)

	logger.Info("🏠 Call intake ready",
		zap.String("flow", flow.Name),
		zap.String("business", biz.Name),
		zap.String("store", string(storeType)),
		zap.Int("publishers", len(publishers)),
	)

	var servers []httpServer
	switch cfg.ServerType {
	case "api":
		servers = append(servers, server.NewAPIServer(cfg, eng, logger))
	case "twilio":
		servers = append(servers, server.NewTwilioServer(cfg, eng, logger))
	case "both":
		servers = append(servers, server.NewAPIServer(cfg, eng, logger), server.NewTwilioServer(cfg, eng, logger))
	default:
		eng.Close()
		sessionManager.Shutdown()
		return fmt.Errorf("unknown SERVER_TYPE %q", cfg.ServerType)
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv httpServer) {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case <-sigChan:
		logger.Info("Received shutdown signal...")
	case serveErr = <-errCh:
		logger.Error("❌ Server error", zap.Error(serveErr))
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown error", zap.Error(err))
		}
	}
	eng.Close()
	sessionManager.Shutdown()

	logger.Info("Server stopped")
	return serveErr
}

type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// connectRedis returns nil when Redis is not needed or not reachable.
func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.StoreType != "redis" && cfg.EventsChannel == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	// Test Redis connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("⚠️ Redis unavailable", zap.String("addr", cfg.RedisURL), zap.Error(err))
		_ = client.Close()
		return nil
	}

	logger.Info("🔗 Connected to Redis", zap.String("addr", cfg.RedisURL))
	return client
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
