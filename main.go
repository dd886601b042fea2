package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"krishilink/api/internal/api"
	"krishilink/api/internal/auth"
	"krishilink/api/internal/cache"
	"krishilink/api/internal/config"
	"krishilink/api/internal/db"
	"krishilink/api/internal/email"
	"krishilink/api/internal/events"
	"krishilink/api/internal/logger"
	"krishilink/api/internal/repository"
	"krishilink/api/internal/services"
	"krishilink/api/internal/storage"
	"krishilink/api/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient, zlog); err != nil {
			zlog.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient, zlog); err != nil {
			zlog.Error("Error disconnecting from Redis", zap.Error(err))
		}
	}()

	// Email senders feed the background worker.
	var primaryEmailSender email.Sender
	if cfg.MockServices {
		zlog.Info("MOCK_SERVICES enabled: using Redis email sender")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg, zlog)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg, zlog)
	}
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)
	if cfg.EmailLogFile != "" {
		fileSender, err := email.NewFileEmailSender(cfg.EmailLogFile, zlog)
		if err != nil {
			zlog.Warn("Failed to open email log file, proceeding without it",
				zap.String("path", cfg.EmailLogFile), zap.Error(err))
		} else {
			compositeSender.AddSender(fileSender)
		}
	}

	taskClient := tasks.NewClient(redisClient)
	defer func() {
		if err := taskClient.Close(); err != nil {
			zlog.Error("Error closing task client", zap.Error(err))
		}
	}()
	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, zlog)

	var wg sync.WaitGroup

	shutdownChan := make(chan struct{}, 1)

	// The service API always runs.
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(redisClient, shutdownChan, zlog),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		zlog.Info("Service API listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Service API ListenAndServe error", zap.Error(err))
		}
		zlog.Info("Service API server stopped")
	}()

	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server
	var publisher events.Publisher

	zlog.Info("Starting application", zap.String("mode", cfg.RunMode), zap.String("env", cfg.AppEnv))

	apiMode := func() {
		verifier, err := auth.NewVerifier(ctx, cfg)
		if err != nil {
			zlog.Fatal("Failed to initialize identity verifier", zap.Error(err))
		}
		if _, ok := verifier.(auth.MockVerifier); ok {
			zlog.Warn("Using mock identity verifier; never enable this outside development")
		}

		publisher, err = events.NewPublisher(cfg.NatsURL, zlog)
		if err != nil {
			zlog.Fatal("Failed to initialize event publisher", zap.Error(err))
		}

		imageStorage, err := storage.NewS3Storage(ctx, cfg)
		if err != nil {
			zlog.Warn("S3 storage unavailable, image upload URLs disabled", zap.Error(err))
			imageStorage = nil
		}

		cropRepo := repository.NewCropRepository(mongoDb)
		userRepo := repository.NewUserRepository(mongoDb)
		cropCache := cache.NewCropCache(redisClient, cfg.GetCacheTTL)

		svc := api.Services{
			Crops:     services.NewCropService(cropRepo, cropCache, imageStorage, zlog),
			Interests: services.NewInterestService(cropRepo, cropCache, tasks.NewNotifier(taskClient), publisher, zlog),
			Users:     services.NewUserService(userRepo, cfg.DefaultUserLimit),
		}

		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: api.SetupRouter(ctx, cfg, zlog, verifier, svc),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			zlog.Info("Main API listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Fatal("Main API ListenAndServe error", zap.Error(err))
			}
			zlog.Info("Main API server stopped")
		}()
	}

	bgMode := func() {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, zlog)
		backgroundTaskSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			zlog.Info("Background task server starting")
			if err := srv.Run(mux); err != nil {
				zlog.Fatal("Background task server error", zap.Error(err))
			}
			zlog.Info("Background task server stopped")
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		zlog.Fatal("Invalid run mode", zap.String("mode", cfg.RunMode))
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		zlog.Info("Shutdown requested via service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			zlog.Error("Main API server shutdown error", zap.Error(err))
		}
	}
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		zlog.Error("Service API server shutdown error", zap.Error(err))
	}
	if publisher != nil {
		publisher.Close()
	}
	cancel()

	wg.Wait()
	zlog.Info("Server gracefully stopped")
}
