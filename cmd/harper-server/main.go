// Package main is the entry point for the Harper Profiles server.
// Harper Profiles is a user profile service with potential-score ranking.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/harper-profiles/internal/auth"
	"github.com/prn-tf/harper-profiles/internal/config"
	"github.com/prn-tf/harper-profiles/internal/handler"
	"github.com/prn-tf/harper-profiles/internal/lock"
	"github.com/prn-tf/harper-profiles/internal/middleware"
	"github.com/prn-tf/harper-profiles/internal/repository"
	"github.com/prn-tf/harper-profiles/internal/repository/postgres"
	redisrepo "github.com/prn-tf/harper-profiles/internal/repository/redis"
	"github.com/prn-tf/harper-profiles/internal/repository/sqlite"
	"github.com/prn-tf/harper-profiles/internal/service"
	"github.com/prn-tf/harper-profiles/internal/storage"

	"golang.org/x/time/rate"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Harper Profiles server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open repository")
	}
	defer closeRepo()

	locker, closeLocker := buildLocker(cfg, logger)
	defer closeLocker()

	userService := service.NewUserService(repo, logger)
	leaderboardService := service.NewLeaderboardService(repo, logger)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	authCfg := auth.Config{
		SkipPaths:  []string{"/healthz"},
		AdminGuard: auth.NewAdminGuard(cfg.Auth.AdminTokenHash),
	}
	if metricsPath != "" {
		authCfg.SkipPaths = append(authCfg.SkipPaths, metricsPath)
	}
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:            rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst:           cfg.RateLimit.BurstSize,
			CleanupInterval: 5 * time.Minute,
		})
		defer rateLimiter.Stop()
	}

	router := handler.NewRouter(handler.RouterConfig{
		UserHandler:    handler.NewUserHandler(userService, leaderboardService, logger),
		AuthMiddleware: auth.Middleware(verifier, authCfg),
		RateLimiter:    rateLimiter,
		MetricsPath:    metricsPath,
		Logger:         logger,
	})

	if cfg.Export.Enabled {
		sink, err := storage.NewS3Sink(ctx, cfg.Export)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize export sink")
		}
		exportService := service.NewExportService(repo, sink, locker, cfg.Export.Prefix, logger)
		go runExportLoop(ctx, exportService, cfg.Export.Interval, logger)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server listen failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// setupLogger builds the root logger from the logging configuration.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// openRepository opens the configured database backend and runs migrations.
func openRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), func() { db.Close() }, nil

	default:
		sqliteCfg := sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			CacheSize:       cfg.Database.CacheSize,
			SynchronousMode: cfg.Database.SynchronousMode,
		}
		db, err := sqlite.NewDB(ctx, sqliteCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), func() { db.Close() }, nil
	}
}

// buildLocker returns the coordination locker: Redis-backed when Redis is
// enabled, in-memory otherwise.
func buildLocker(cfg *config.Config, logger zerolog.Logger) (lock.Locker, func()) {
	if !cfg.Redis.Enabled {
		return lock.NewMemoryLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	locker := lock.NewRedisLocker(redisrepo.NewDistributedLock(client, logger))
	return locker, func() { client.Close() }
}

// runExportLoop periodically exports the user collection until ctx ends.
func runExportLoop(ctx context.Context, svc *service.ExportService, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			key, err := svc.Run(ctx)
			if err != nil {
				if !errors.Is(err, service.ErrExportInProgress) {
					logger.Error().Err(err).Msg("scheduled export failed")
				}
				continue
			}
			logger.Info().Str("key", key).Msg("scheduled export complete")
		}
	}
}
