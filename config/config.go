package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is everything the portal reads from the environment. Each
// concern lives in its own file: auth.go, database.go, http.go, notices.go
// and observability.go.
type AppConfig struct {
	// IsDev is set by DEV=true or NODE_ENV=development.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth          AuthConfig
	Postgres      DBConfig    `envPrefix:"DB_"`
	Redis         RedisConfig `envPrefix:"REDIS_"`
	HTTP          HTTPConfig
	Notices       NoticesConfig
	Observability ObservabilityConfig
}

// Sanitize clamps and normalizes parsed values. It never fails; Validate
// reports what cannot be fixed up.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.Notices.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

// Validate reports configuration that cannot start a server.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Auth.Mode == AuthModeDev && !c.IsDev {
		errs = append(errs, errors.New("AUTH_MODE=dev requires DEV=true"))
	}
	if !c.IsDev && len(c.Auth.JWTSecret) < MinJWTSecretLen {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", MinJWTSecretLen))
	}
	if c.Auth.Mode == AuthModeOIDC {
		if c.Auth.OIDC.ClientID == "" {
			errs = append(errs, errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc"))
		}
		if c.Auth.OIDC.DiscoveryURL == "" {
			errs = append(errs, errors.New("OIDC_DISCOVERY_URL is required when AUTH_MODE=oidc"))
		}
	}
	return errors.Join(errs...)
}

func (c *AppConfig) detectDevMode() {
	if c.IsDev {
		return
	}
	switch strings.ToLower(os.Getenv("NODE_ENV")) {
	case "development", "dev":
		c.IsDev = true
	}
}
