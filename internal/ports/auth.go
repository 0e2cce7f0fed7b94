package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
)

var (
	// ErrInvalidCredentials is returned when an email/password pair is rejected.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrNoSession is returned by operations that need a signed-in identity.
	ErrNoSession = errors.New("no active session")
	// ErrUnsupported is returned when a provider cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by identity provider")
	// ErrProfileNotFound is returned when no profile exists for an identity.
	ErrProfileNotFound = errors.New("profile not found")
)

// ProviderError carries a message that is safe to show to the end user.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UserMessage returns the user-safe message of a ProviderError in err's chain.
func UserMessage(err error) (string, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message, true
	}
	return "", false
}

// SessionChangeHandler receives session-change notifications from an IdentityClient.
// Implementations must return quickly; long work belongs on another goroutine.
type SessionChangeHandler func(change domainauth.SessionChange)

// IdentityClient is a per-browser-client view of the identity provider.
type IdentityClient interface {
	// CurrentSession returns the persisted identity, or nil when signed out.
	CurrentSession(ctx context.Context) (*domainauth.Identity, error)

	// Subscribe registers handler for session changes and returns a function that
	// cancels the subscription. The handler may fire once with the current session.
	Subscribe(ctx context.Context, handler SessionChangeHandler) (unsubscribe func(), err error)

	// SignInWithPassword exchanges credentials for an identity and persists it.
	SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error)

	// SignOut ends the persisted session.
	SignOut(ctx context.Context) error

	// UpdatePassword changes the password of the signed-in identity.
	UpdatePassword(ctx context.Context, newPassword string) error

	// RefreshSession renews the credential of the signed-in identity. It returns
	// ErrNoSession when nothing is signed in.
	RefreshSession(ctx context.Context) (domainauth.Identity, error)
}

// IdentityProvider hands out IdentityClients scoped to a browser client id.
type IdentityProvider interface {
	Client(clientID string) IdentityClient
}

// SessionMover is implemented by providers that can re-key a signed-in session
// to another browser client id. The session under from ends; to receives a
// freshly issued credential for the same user.
type SessionMover interface {
	MoveSession(ctx context.Context, from, to string) error
}

// Principal is a verified user as reported by a CredentialVerifier.
type Principal struct {
	UserID string
	Email  string
}

// CredentialVerifier checks an email/password pair against a credential source.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (Principal, error)
}

// PasswordSetter is implemented by verifiers that own their credential store.
type PasswordSetter interface {
	SetPassword(ctx context.Context, userID, newPassword string) error
}

// TokenRecord is the persisted identity session of one browser client.
type TokenRecord struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore persists identity sessions keyed by browser client id.
// Get returns an error matching ErrNoSession when no live record exists.
type TokenStore interface {
	Save(ctx context.Context, clientID string, rec TokenRecord) error
	Get(ctx context.Context, clientID string) (TokenRecord, error)
	Delete(ctx context.Context, clientID string) error
}

// EventBus fans session-change notifications out to subscribers of a client id.
type EventBus interface {
	Publish(ctx context.Context, clientID string, change domainauth.SessionChange) error
	Subscribe(ctx context.Context, clientID string, handler SessionChangeHandler) (unsubscribe func(), err error)
}

// ProfileRepository is the data-access collaborator for authorization profiles.
type ProfileRepository interface {
	// GetByID returns ErrProfileNotFound (possibly wrapped) when no profile exists.
	GetByID(ctx context.Context, id string) (domainauth.Profile, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateDetails(ctx context.Context, id string, fullName, contactNumber string) error
}

// Notifier surfaces transient messages to the user of one browser client.
type Notifier interface {
	Notify(ctx context.Context, n domainauth.Notification)
}

// RedirectOptions controls how a navigation is applied.
type RedirectOptions struct {
	ReplaceHistory bool
}

// Navigator sends the user of one browser client to another path.
type Navigator interface {
	Redirect(ctx context.Context, path string, opts RedirectOptions)
}
