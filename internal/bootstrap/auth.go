package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gpchangipur/portal/config"
	"github.com/gpchangipur/portal/internal/adapters/devauth"
	"github.com/gpchangipur/portal/internal/adapters/identity"
	"github.com/gpchangipur/portal/internal/adapters/localauth"
	"github.com/gpchangipur/portal/internal/adapters/oidc"
	redisadapter "github.com/gpchangipur/portal/internal/adapters/redis"
	"github.com/gpchangipur/portal/internal/data"
	"github.com/gpchangipur/portal/internal/ports"
)

// IdentityConfig contains what the identity provider is built from.
type IdentityConfig struct {
	Auth        config.AuthConfig
	IsDev       bool
	KeyPrefix   string
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildIdentityProvider wires the credential verifier selected by AUTH_MODE
// to Redis-backed token storage and session-change fan-out.
func BuildIdentityProvider(ctx context.Context, cfg IdentityConfig) (*identity.Provider, error) {
	if cfg.RedisClient == nil {
		return nil, errors.New("identity provider requires a redis client")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	secret, err := tokenSecret(cfg, logger)
	if err != nil {
		return nil, err
	}
	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	issuer, err := identity.NewTokenIssuer(secret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	prov, err := identity.NewProvider(identity.ProviderOptions{
		Verifier: verifier,
		Tokens:   redisadapter.NewTokenStoreWithPrefix(cfg.RedisClient, cfg.KeyPrefix+"identity:"),
		Events: redisadapter.NewEventBus(redisadapter.EventBusOptions{
			Client:        cfg.RedisClient,
			ChannelPrefix: cfg.KeyPrefix + "auth:",
			Logger:        logger,
		}),
		Issuer: issuer,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	logger.InfoContext(ctx, "identity provider configured", "mode", cfg.Auth.Mode)
	return prov, nil
}

//nolint:ireturn // the verifier is chosen at runtime from AUTH_MODE.
func buildVerifier(ctx context.Context, cfg IdentityConfig) (ports.CredentialVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		if !cfg.IsDev {
			return nil, errors.New("AUTH_MODE=dev requires DEV=true")
		}
		return devauth.NewVerifier(devauth.Config{
			UserID:   cfg.Auth.DevAuth.UserID,
			Email:    cfg.Auth.DevAuth.Email,
			Password: cfg.Auth.DevAuth.Password,
		})

	case config.AuthModeOIDC:
		oc := cfg.Auth.OIDC
		return oidc.NewVerifier(ctx, oidc.VerifierConfig{
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Scope:        oc.Scope,
			DiscoveryURL: oc.DiscoveryURL,
		})

	case config.AuthModeLocal, "":
		if cfg.DB == nil {
			return nil, errors.New("AUTH_MODE=local requires a database")
		}
		return localauth.NewVerifier(data.NewUserRepo(cfg.DB), cfg.Auth.BcryptCost)

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// tokenSecret returns the configured signing secret. Dev mode without one gets
// a random secret, so sessions do not survive a restart.
func tokenSecret(cfg IdentityConfig, logger *slog.Logger) ([]byte, error) {
	if cfg.Auth.JWTSecret != "" {
		return []byte(cfg.Auth.JWTSecret), nil
	}
	if !cfg.IsDev {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	secret := make([]byte, config.MinJWTSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate token secret: %w", err)
	}
	logger.Warn("AUTH_JWT_SECRET not set; using a random secret for this process")
	return secret, nil
}
