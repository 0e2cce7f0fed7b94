package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the credential source used to sign admins in.
type AuthMode string

const (
	// AuthModeLocal checks bcrypt password hashes stored in Postgres.
	AuthModeLocal AuthMode = "local"
	// AuthModeOIDC exchanges credentials with an OIDC provider (password grant).
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev accepts a single configured account (for development only).
	AuthModeDev AuthMode = "dev"
)

// MinJWTSecretLen is the shortest accepted HS256 signing secret.
const MinJWTSecretLen = 32

const (
	defaultSessionTTL          = 8 * time.Hour
	defaultGuardSettleTimeout  = 2 * time.Second
	defaultStoreIdleTTL        = 30 * time.Minute
	defaultProfileTouchTimeout = 5 * time.Second
	defaultRefreshWindow       = 15 * time.Minute
	minBcryptCost              = 4
	maxBcryptCost              = 31
	defaultBcryptCost          = 12
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "local", "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: local, oidc, dev)", v)
	}
}

// OIDCConfig contains OIDC password-grant configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid email profile"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig controls the single development account.
// Used when AUTH_MODE=dev.
type DevAuthConfig struct {
	UserID   string `env:"USER_ID"  envDefault:"dev-admin"`
	Email    string `env:"EMAIL"    envDefault:"admin@localhost"`
	Password string `env:"PASSWORD" envDefault:"admin123"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which credential source to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"local"`

	// JWTSecret signs access tokens. Required outside development.
	JWTSecret string `env:"AUTH_JWT_SECRET"`
	JWTIssuer string `env:"AUTH_JWT_ISSUER" envDefault:"portal"`

	// SessionTTL is the lifetime of an access token and its persisted session.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"8h"`

	// GuardSettleTimeout bounds how long a protected request waits for a
	// fresh session to settle before the loading page is shown.
	GuardSettleTimeout time.Duration `env:"AUTH_GUARD_SETTLE_TIMEOUT" envDefault:"2s"`

	// StoreIdleTTL evicts per-client session stores not used for this long.
	StoreIdleTTL time.Duration `env:"AUTH_STORE_IDLE_TTL" envDefault:"30m"`

	// RefreshWindow renews a session's token when a guarded request arrives
	// this close to its expiry. Negative disables renewal.
	RefreshWindow time.Duration `env:"AUTH_REFRESH_WINDOW" envDefault:"15m"`

	// ProfileTouchTimeout bounds the detached last-login write.
	ProfileTouchTimeout time.Duration `env:"AUTH_PROFILE_TOUCH_TIMEOUT" envDefault:"5s"`

	// BcryptCost is used when hashing passwords in local mode.
	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize restores defaults for non-positive durations and clamps the bcrypt cost.
func (a *AuthConfig) Sanitize() {
	if a.Mode == "" {
		a.Mode = AuthModeLocal
	}
	if a.SessionTTL <= 0 {
		a.SessionTTL = defaultSessionTTL
	}
	if a.GuardSettleTimeout < 0 {
		a.GuardSettleTimeout = defaultGuardSettleTimeout
	}
	if a.StoreIdleTTL <= 0 {
		a.StoreIdleTTL = defaultStoreIdleTTL
	}
	if a.RefreshWindow == 0 || a.RefreshWindow >= a.SessionTTL {
		a.RefreshWindow = min(defaultRefreshWindow, a.SessionTTL/2)
	}
	if a.ProfileTouchTimeout <= 0 {
		a.ProfileTouchTimeout = defaultProfileTouchTimeout
	}
	switch {
	case a.BcryptCost == 0:
		a.BcryptCost = defaultBcryptCost
	case a.BcryptCost < minBcryptCost:
		a.BcryptCost = minBcryptCost
	case a.BcryptCost > maxBcryptCost:
		a.BcryptCost = maxBcryptCost
	}
	a.OIDC.DiscoveryURL = strings.TrimSpace(a.OIDC.DiscoveryURL)
}
