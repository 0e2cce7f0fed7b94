package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/gpchangipur/portal/config"
	redisadapter "github.com/gpchangipur/portal/internal/adapters/redis"
	"github.com/gpchangipur/portal/internal/data"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	httpx "github.com/gpchangipur/portal/internal/http"
	"github.com/gpchangipur/portal/internal/observability/metrics"
	"github.com/gpchangipur/portal/internal/service"
)

const shutdownWaitTimeout = 10 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Sessions *service.SessionRegistry
	Auth     *service.AuthService
	Notices  *service.NoticeService
	Gallery  *service.GalleryService
	Settings *service.SettingsService
	Flash    *redisadapter.FlashStore
	Pages    *httpx.PageRenderer

	Observability ObservabilityContainer
	Ready         map[string]httpx.HealthCheck
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Registry    *prometheus.Registry
	AuthMetrics *metrics.AuthMetrics
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Profiles *data.ProfileRepo
	Notices  *data.NoticeRepo
	Gallery  *data.GalleryRepo
	Flash    *redisadapter.FlashStore
}

// buildObservability registers the runtime collectors and the auth instruments
// on a private registry so /metrics exposes only what the portal owns.
func buildObservability(cfg config.ObservabilityConfig) (ObservabilityContainer, error) {
	reg := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	am, err := metrics.NewAuthMetrics(reg)
	if err != nil {
		return ObservabilityContainer{}, fmt.Errorf("auth metrics: %w", err)
	}
	return ObservabilityContainer{Registry: reg, AuthMetrics: am}, nil
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, client redis.UniversalClient, keyPrefix string, logger *slog.Logger) *serviceRepositories {
	return &serviceRepositories{
		Profiles: data.NewProfileRepo(db),
		Notices:  data.NewNoticeRepo(db),
		Gallery:  data.NewGalleryRepo(db),
		Flash: redisadapter.NewFlashStore(redisadapter.FlashStoreOptions{
			Client: client,
			Prefix: keyPrefix + "flash:",
			Logger: logger,
		}),
	}
}

// NewServices wires the identity provider, the per-client session registry and
// the services behind the HTTP router.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	if deps.DB == nil || deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("database and redis are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs, err := buildObservability(cfg.Observability)
	if err != nil {
		return ServiceContainer{}, err
	}
	repos := buildRepositories(deps.DB, deps.RedisClient, cfg.Redis.KeyPrefix, logger)

	idp, err := BuildIdentityProvider(ctx, IdentityConfig{
		Auth:        cfg.Auth,
		IsDev:       cfg.IsDev,
		KeyPrefix:   cfg.Redis.KeyPrefix,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	sessions, err := service.NewSessionRegistry(service.SessionRegistryOptions{
		Identity:      idp,
		Profiles:      repos.Profiles,
		Notifiers:     repos.Flash.Notifier,
		Navigation:    service.NewNavigationRecorder(),
		Metrics:       obs.AuthMetrics,
		Logger:        logger,
		Policy:        domainauth.AdminOnly,
		IdleTTL:       cfg.Auth.StoreIdleTTL,
		TouchTimeout:  cfg.Auth.ProfileTouchTimeout,
		RefreshWindow: cfg.Auth.RefreshWindow,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session registry: %w", err)
	}

	pages, err := httpx.NewPageRenderer()
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("page renderer: %w", err)
	}

	return ServiceContainer{
		Sessions: sessions,
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Sessions:      sessions,
			SettleTimeout: cfg.Auth.GuardSettleTimeout,
		}),
		Notices: service.NewNoticeService(service.NoticeServiceOptions{
			Repo:     repos.Notices,
			CacheTTL: cfg.Notices.CacheTTL,
			PageSize: cfg.Notices.PageSize,
			Logger:   logger,
		}),
		Gallery: service.NewGalleryService(service.GalleryServiceOptions{
			Repo:   repos.Gallery,
			Logger: logger,
		}),
		Settings: service.NewSettingsService(service.SettingsServiceOptions{
			Profiles:  repos.Profiles,
			Notifiers: repos.Flash.Notifier,
			Logger:    logger,
		}),
		Flash:         repos.Flash,
		Pages:         pages,
		Observability: obs,
		Ready: map[string]httpx.HealthCheck{
			"postgres": pingDB(deps.DB),
			"redis":    pingRedis(deps.RedisClient),
		},
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the HTTP server and blocks until a shutdown
// signal arrives or the server fails, then stops everything gracefully.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
		ErrCh:    errCh,
	})

	return waitForShutdown(shutdownConfig{
		ctx:        serviceCtx,
		cancel:     cancel,
		errCh:      errCh,
		httpServer: server,
		sessions:   cfg.Services.Sessions,
		timeout:    cfg.Config.HTTP.ShutdownTimeout,
		logger:     logger,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx        context.Context
	cancel     context.CancelFunc
	errCh      <-chan error
	httpServer *http.Server
	sessions   *service.SessionRegistry
	timeout    time.Duration
	logger     *slog.Logger
}

// waitForShutdown waits for shutdown signal, context cancellation or server error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case <-cfg.ctx.Done():
		cfg.logger.Info("shutting down services...")
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains HTTP requests first, then releases every session store
// and its identity subscription.
func gracefulStop(cfg shutdownConfig) error {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), timeout)
	defer cancel()

	var errs []error
	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	if cfg.sessions != nil {
		if err := cfg.sessions.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("session registry: %w", err))
		} else {
			cfg.logger.Info("session stores closed")
		}
	}

	return errors.Join(errs...)
}
