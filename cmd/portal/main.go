package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/gpchangipur/portal/config"
	"github.com/gpchangipur/portal/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(slog.LevelInfo)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "portal exited", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit tells the supervisor startup or serving failed.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.InitLogger(cfg.Observability.SlogLevel())
	logger.InfoContext(ctx, "starting portal",
		"auth_mode", cfg.Auth.Mode,
		"dev", cfg.IsDev,
		"http_addr", cfg.HTTP.Addr,
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Name))

	stores, err := connectStores(&cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stores.Close(); cerr != nil {
			logger.ErrorContext(ctx, "closing stores", "error", cerr)
		}
	}()

	if err := prepareDatabase(ctx, &cfg, stores.db, logger); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          stores.db,
		RedisClient: stores.redis,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

// stores holds the two backing services the portal cannot run without.
type stores struct {
	db    *sql.DB
	redis redis.UniversalClient
}

func (s *stores) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func connectStores(cfg *config.AppConfig, logger *slog.Logger) (*stores, error) {
	dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	s := &stores{}
	var err error
	if s.db, err = bootstrap.ConnectDB(dbCfg); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if s.redis, err = bootstrap.ConnectRedis(dbCfg); err != nil {
		return nil, errors.Join(fmt.Errorf("connect redis: %w", err), s.Close())
	}
	return s, nil
}

// prepareDatabase migrates the schema when enabled and seeds development
// data. Seeding problems are logged; the portal still starts.
func prepareDatabase(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *slog.Logger) error {
	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "migrations on start disabled; run portal-admin migrate")
	}

	if err := bootstrap.SeedDevData(ctx, cfg, db, logger); err != nil {
		logger.WarnContext(ctx, "development seeding incomplete", "error", err)
	}
	return nil
}
