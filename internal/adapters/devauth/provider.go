package devauth

// Package devauth provides a config-driven credential verifier for local development.

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gpchangipur/portal/internal/ports"
)

// Config describes the single account accepted in dev mode.
// All fields are required.
type Config struct {
	UserID   string
	Email    string
	Password string
}

// Verifier implements ports.CredentialVerifier for local development.
// It accepts exactly one configured email/password pair and cannot change it.
type Verifier struct {
	principal ports.Principal
	password  []byte
}

var _ ports.CredentialVerifier = (*Verifier)(nil)

// NewVerifier constructs a dev verifier from Config.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("dev auth: Password is required")
	}
	return &Verifier{
		principal: ports.Principal{UserID: cfg.UserID, Email: cfg.Email},
		password:  []byte(cfg.Password),
	}, nil
}

// Verify accepts the configured account. Email matching ignores case.
func (v *Verifier) Verify(_ context.Context, email, password string) (ports.Principal, error) {
	emailOK := strings.EqualFold(strings.TrimSpace(email), v.principal.Email)
	passOK := subtle.ConstantTimeCompare([]byte(password), v.password) == 1
	if !emailOK || !passOK {
		return ports.Principal{}, ports.ErrInvalidCredentials
	}
	return v.principal, nil
}
