package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

const minSecretLen = 32

// Claims are the portal access token claims. ClientID binds a token to the
// browser client it was issued for.
type Claims struct {
	Email    string `json:"email"`
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and checks HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer validates the secret and constructs a TokenIssuer.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue signs a new token for p on behalf of clientID.
func (t *TokenIssuer) Issue(clientID string, p ports.Principal) (domainauth.Identity, error) {
	now := t.now().UTC().Truncate(time.Second)
	exp := now.Add(t.ttl)
	claims := Claims{
		Email:    p.Email,
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   p.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return domainauth.Identity{UserID: p.UserID, Email: p.Email, Token: signed, ExpiresAt: exp}, nil
}

// Parse verifies raw and checks it was issued to clientID.
func (t *TokenIssuer) Parse(clientID, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return t.secret, nil }, opts...); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.ClientID != clientID {
		return nil, errors.New("token was issued to another client")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &claims, nil
}
