// Package localauth verifies email/password credentials against the portal's users table.
package localauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gpchangipur/portal/internal/core"
	"github.com/gpchangipur/portal/internal/ports"
)

// MinPasswordLength is the shortest password SetPassword and HashPassword accept.
const MinPasswordLength = 6

// ErrPasswordTooShort is returned for passwords under MinPasswordLength.
var ErrPasswordTooShort = &ports.ProviderError{Message: "Password must be at least 6 characters"}

var (
	_ ports.CredentialVerifier = (*Verifier)(nil)
	_ ports.PasswordSetter     = (*Verifier)(nil)
)

// Verifier checks bcrypt password hashes stored through a core.UserRepository.
type Verifier struct {
	users     core.UserRepository
	cost      int
	dummyHash []byte
}

// NewVerifier constructs a Verifier. cost <= 0 selects bcrypt.DefaultCost.
func NewVerifier(users core.UserRepository, cost int) (*Verifier, error) {
	if users == nil {
		return nil, errors.New("localauth: user repository is required")
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	// Compared against when the email is unknown so both paths pay for one bcrypt run.
	dummy, err := bcrypt.GenerateFromPassword([]byte("portal-unknown-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("localauth: prepare dummy hash: %w", err)
	}
	return &Verifier{users: users, cost: cost, dummyHash: dummy}, nil
}

// Verify returns the principal for a matching email/password pair.
// Unknown emails and wrong passwords both yield ports.ErrInvalidCredentials.
func (v *Verifier) Verify(ctx context.Context, email, password string) (ports.Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ports.Principal{}, ports.ErrInvalidCredentials
	}

	u, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
			return ports.Principal{}, ports.ErrInvalidCredentials
		}
		return ports.Principal{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ports.Principal{}, ports.ErrInvalidCredentials
		}
		return ports.Principal{}, fmt.Errorf("compare password: %w", err)
	}
	return ports.Principal{UserID: u.ID, Email: u.Email}, nil
}

// SetPassword stores a new hash for userID.
func (v *Verifier) SetPassword(ctx context.Context, userID, newPassword string) error {
	hash, err := HashPassword(newPassword, v.cost)
	if err != nil {
		return err
	}
	if err := v.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// HashPassword validates and bcrypt-hashes a password.
func HashPassword(password string, cost int) (string, error) {
	if len([]rune(password)) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}
