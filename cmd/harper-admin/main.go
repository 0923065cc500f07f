// Package main is the entry point for the Harper Profiles admin CLI.
// It provides operational commands: full user snapshot export, bulk score
// recalculation, and admin token hash generation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/harper-profiles/internal/auth"
	"github.com/prn-tf/harper-profiles/internal/config"
	"github.com/prn-tf/harper-profiles/internal/lock"
	"github.com/prn-tf/harper-profiles/internal/repository"
	"github.com/prn-tf/harper-profiles/internal/repository/postgres"
	redisrepo "github.com/prn-tf/harper-profiles/internal/repository/redis"
	"github.com/prn-tf/harper-profiles/internal/repository/sqlite"
	"github.com/prn-tf/harper-profiles/internal/service"
	"github.com/prn-tf/harper-profiles/internal/storage"
)

// rescoreLockTTL bounds how long a crashed rescore run can block the next one.
const rescoreLockTTL = 30 * time.Minute

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch flag.Arg(0) {
	case "version":
		fmt.Printf("Harper Profiles Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "export":
		err = runExport(*configPath)

	case "rescore-all":
		err = runRescoreAll(*configPath)

	case "hash-admin-token":
		err = runHashAdminToken(flag.Arg(1))

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func runExport(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Export.Bucket == "" {
		return fmt.Errorf("export.bucket is not configured")
	}
	logger := consoleLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	locker, closeLocker := buildLocker(cfg, logger)
	defer closeLocker()

	sink, err := storage.NewS3Sink(ctx, cfg.Export)
	if err != nil {
		return err
	}

	key, err := service.NewExportService(repo, sink, locker, cfg.Export.Prefix, logger).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("snapshot written to s3://%s/%s\n", cfg.Export.Bucket, key)
	return nil
}

func runRescoreAll(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := consoleLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	locker, closeLocker := buildLocker(cfg, logger)
	defer closeLocker()

	acquired, err := locker.Acquire(ctx, lock.Keys.UserRescore(), rescoreLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another rescore run is in progress")
	}
	defer locker.Release(context.Background(), lock.Keys.UserRescore())

	n, err := service.NewUserService(repo, logger).RescoreAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("rescored %d users\n", n)
	return nil
}

func runHashAdminToken(token string) error {
	if token == "" {
		return fmt.Errorf("usage: harper-admin hash-admin-token <token>")
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func consoleLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func openRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.UserRepository, func(), error) {
	if cfg.Database.Driver == "postgres" {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), func() { db.Close() }, nil
	}

	db, err := sqlite.NewDB(ctx, sqlite.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		JournalMode:     cfg.Database.JournalMode,
		BusyTimeout:     cfg.Database.BusyTimeout,
		CacheSize:       cfg.Database.CacheSize,
		SynchronousMode: cfg.Database.SynchronousMode,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewUserRepository(db), func() { db.Close() }, nil
}

// buildLocker returns the coordination locker. Without Redis a one-shot CLI
// process has nothing to coordinate with, so locking is a no-op.
func buildLocker(cfg *config.Config, logger zerolog.Logger) (lock.Locker, func()) {
	if !cfg.Redis.Enabled {
		return lock.NewNoOpLocker(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	return lock.NewRedisLocker(redisrepo.NewDistributedLock(client, logger)), func() { client.Close() }
}

func printUsage() {
	fmt.Println(`Harper Profiles Admin CLI

Usage:
  harper-admin [-config path] <command> [arguments]

Commands:
  export             Export the full user collection to the configured S3 bucket
  rescore-all        Recompute and persist the potential score for every user
  hash-admin-token   Print the bcrypt hash for a maintenance token
  version            Print version information
  help               Show this help message

Examples:
  harper-admin export
  harper-admin rescore-all
  harper-admin hash-admin-token s3cret
  harper-admin -config /etc/harper/config.yaml export`)
}
