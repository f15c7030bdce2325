package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/SAP-F-2025/integrity-service/internal/cache"
	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	"github.com/SAP-F-2025/integrity-service/internal/config"
	"github.com/SAP-F-2025/integrity-service/internal/events"
	"github.com/SAP-F-2025/integrity-service/internal/handlers"
	"github.com/SAP-F-2025/integrity-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/integrity-service/internal/rules"
	"github.com/SAP-F-2025/integrity-service/internal/services"
	"github.com/SAP-F-2025/integrity-service/internal/trainer"
	"github.com/SAP-F-2025/integrity-service/internal/utils"
	"github.com/SAP-F-2025/integrity-service/internal/validator"
	"github.com/SAP-F-2025/integrity-service/internal/verdict"
	"github.com/SAP-F-2025/integrity-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser := utils.NewLogger(utils.LogOptions{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detection, err := config.LoadDetectionConfig(cfg.DetectionConfig)
	if err != nil {
		return err
	}
	if cfg.ModelPath != "" {
		detection.Trainer.ModelPath = cfg.ModelPath
	}
	if cfg.ModelVersionsDir != "" {
		detection.Trainer.VersionsDir = cfg.ModelVersionsDir
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := pkg.Migrate(db); err != nil {
		return err
	}
	repo := postgres.NewRepository(db)

	var (
		verdictCache cache.CacheService = cache.NoopCache{}
		locker       trainer.Locker
	)
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running without verdict cache and retrain lock", "error", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		verdictCache = cache.NewRedisCache(redisClient, logger)
		locker = cache.NewRedisLocker(redisClient)
	}

	// The model is loaded once; a missing artifact leaves rules-only
	// evaluation until the first retrain.
	handle := classifier.NewHandle(logger)
	if err := handle.LoadFile(detection.Trainer.ModelPath); err != nil {
		logger.Warn("No classifier model loaded", "path", detection.Trainer.ModelPath, "error", err)
	}
	if cfg.WatchModel {
		watcher, err := classifier.NewWatcher(detection.Trainer.ModelPath, handle, logger)
		if err != nil {
			return err
		}
		go watcher.Run(ctx)
	}

	composer := verdict.NewComposer(
		rules.NewEngine(detection.Rules),
		classifier.NewPredictor(handle, detection.TopFactors),
		detection.ComposerOptions(),
	)

	bus, err := cfg.Events.CreateEventBus(logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	v := validator.New()
	evaluation := services.NewEvaluationService(repo, composer, verdictCache, bus.Publisher, v, logger)
	review := services.NewReviewService(repo, verdictCache, bus.Publisher, v, logger)
	retrain := services.NewRetrainService(repo, handle, locker, detection.Trainer, bus.Publisher, logger)

	if bus.Subscriber != nil {
		router, err := events.NewRetrainRouter(bus.Subscriber, bus.Raw, cfg.Events.RouterConfig(), retrain.HandleLabelCorrected, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := router.Run(ctx); err != nil {
				logger.Error("Retrain router stopped", "error", err)
			}
		}()
		defer router.Close()
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.RetrainSchedule, retrain.RunScheduled); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()
	logger.Info("Retrain scheduled", "schedule", cfg.RetrainSchedule)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(utils.LoggerMiddleware(utils.NewSlogLogger(logger)), gin.Recovery(), corsMiddleware(cfg.CORSOrigins))
	handlers.NewHandlerManager(evaluation, review, retrain, utils.NewSlogLogger(logger)).SetupRoutes(engine)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}
