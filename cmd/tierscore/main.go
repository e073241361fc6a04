package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ecolens/tierscore/internal/config"
	dbValkey "github.com/ecolens/tierscore/internal/db/valkey"
	"github.com/ecolens/tierscore/internal/domain"
	logpkg "github.com/ecolens/tierscore/internal/logger"
	"github.com/ecolens/tierscore/internal/metrics"
	"github.com/ecolens/tierscore/internal/onnx"
	"github.com/ecolens/tierscore/internal/repository/predcache"
	chiTransport "github.com/ecolens/tierscore/internal/transport/chi"
	healthuc "github.com/ecolens/tierscore/internal/usecase/health"
	inferenceuc "github.com/ecolens/tierscore/internal/usecase/inference"
	"github.com/ecolens/tierscore/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tierscore API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("manifest", cfg.Model.Manifest),
		zap.Int("sessions", cfg.Model.Sessions),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()

	// Optional prediction cache
	opts := inferenceuc.Options{MaxImagePixels: cfg.Model.MaxImagePixels}
	var cachePinger healthuc.CachePinger
	if cfg.Cache.Enabled {
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			// The cache only saves work; a miss-only cache keeps predictions correct.
			logger.Warn("Cache store not ready, continuing", zap.Error(err))
		} else {
			logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Cache.Addrs))
		}

		opts.Cache = predcache.New(store, cfg.Cache.TTL(), logger)
		cachePinger = store
	}

	// Artifact lifecycle
	rt := onnx.NewRuntime(cfg.Model.RuntimeLibrary)
	loader := onnx.NewLoader(rt, cfg.Model.Manifest, onnx.Options{
		Sessions:       cfg.Model.Sessions,
		IntraOpThreads: cfg.Model.IntraOpThreads,
		Logger:         logger,
	})
	inferenceSvc := inferenceuc.New(artifactLoader(loader), opts, logger)

	if err := inferenceSvc.Load(ctx); err != nil {
		if domain.IsConfigurationFault(err) {
			logger.Fatal("Artifact configuration is inconsistent", zap.Error(err))
		}
		logger.Error("Artifact unavailable, predictions will fail until reload (SIGHUP)", zap.Error(err))
	}

	healthSvc := healthuc.New(inferenceSvc, cachePinger)

	server := chiTransport.NewServer(inferenceSvc, healthSvc, cfg.HTTP.MaxUploadBytes, logger)
	router := chiTransport.NewRouter(server, cfg.HTTP.CORSAllowedOrigins, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// SIGHUP swaps the artifact, SIGINT/SIGTERM shut down
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigs {
		if sig != syscall.SIGHUP {
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			break
		}
		logger.Info("Received SIGHUP, reloading artifact")
		if err := inferenceSvc.Reload(ctx); err != nil {
			logger.Error("Artifact reload failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	inferenceSvc.Unload()
	if err := rt.Close(); err != nil {
		logger.Warn("Failed to release onnx runtime", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
