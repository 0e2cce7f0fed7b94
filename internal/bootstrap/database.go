package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/gpchangipur/portal/config"
	"github.com/gpchangipur/portal/internal/data"
	"github.com/gpchangipur/portal/internal/devseed"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/migrate"
)

// DatabaseConfig carries connection settings for Postgres and Redis.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// The portal's query load is a handful of profile and notice lookups per
// request, so the pool stays small.
const (
	dbMaxOpenConns    = 10
	dbMaxIdleConns    = 3
	dbConnMaxLifetime = 5 * time.Minute
	dbPingTimeout     = 5 * time.Second
)

// ConnectDB opens the Postgres pool and verifies it with a ping.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping database: %w", err), db.Close())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name)
	}
	return db, nil
}

// postgresDSN builds a URL DSN; url.UserPassword escapes credentials.
func postgresDSN(c config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RunMigrations applies pending schema migrations and logs the versions applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	applied, err := migrate.Apply(ctx, db)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed", "applied", applied)
	}
	return nil
}

func pingDB(db *sql.DB) func(context.Context) error {
	return db.PingContext
}

// SeedDevData gives the dev account an admin profile and puts sample notices
// on the board. It only runs with DEV=true and AUTH_MODE=dev.
func SeedDevData(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *slog.Logger) error {
	if cfg == nil || !cfg.IsDev || cfg.Auth.Mode != config.AuthModeDev {
		return nil
	}
	return devseed.Run(ctx, devseed.Options{
		Profiles: data.NewProfileRepo(db),
		Notices:  data.NewNoticeRepo(db),
		Gallery:  data.NewGalleryRepo(db),
		Admin: domainauth.Profile{
			ID:       cfg.Auth.DevAuth.UserID,
			Email:    cfg.Auth.DevAuth.Email,
			FullName: "Development Admin",
		},
		Logger: logger,
	})
}
