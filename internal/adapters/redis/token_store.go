package redis

// Package redis provides Redis-based adapters for the portal.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gpchangipur/portal/internal/ports"
)

const defaultTokenPrefix = "identity:"

// TokenStore persists one identity session per browser client.
// Keys expire together with the token they hold.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ ports.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates a Redis-backed TokenStore using the "identity:" key prefix.
func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return NewTokenStoreWithPrefix(client, defaultTokenPrefix)
}

// NewTokenStoreWithPrefix creates a Redis-backed TokenStore with a custom key prefix.
func NewTokenStoreWithPrefix(client redis.UniversalClient, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix, now: time.Now}
}

// Save stores rec under clientID with a TTL matching rec.ExpiresAt.
func (s *TokenStore) Save(ctx context.Context, clientID string, rec ports.TokenRecord) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("token is expired")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}
	return s.client.Set(ctx, s.prefix+clientID, data, ttl).Err()
}

// Get returns the record for clientID or ErrNotFound.
func (s *TokenStore) Get(ctx context.Context, clientID string) (ports.TokenRecord, error) {
	if clientID == "" {
		return ports.TokenRecord{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+clientID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.TokenRecord{}, ErrNotFound
		}
		return ports.TokenRecord{}, fmt.Errorf("redis get: %w", err)
	}

	var rec ports.TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ports.TokenRecord{}, fmt.Errorf("unmarshal token record: %w", err)
	}

	// Key TTLs have second granularity; the record's own expiry is authoritative.
	if !s.now().Before(rec.ExpiresAt) {
		if err := s.Delete(ctx, clientID); err != nil {
			return ports.TokenRecord{}, fmt.Errorf("cleanup expired token: %w", err)
		}
		return ports.TokenRecord{}, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record for clientID. Missing keys are not an error.
func (s *TokenStore) Delete(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+clientID).Err()
}

type notFoundError struct{}

func (notFoundError) Error() string { return "identity session not found" }

// Is lets callers match ports.ErrNoSession without importing this package.
func (notFoundError) Is(target error) bool { return target == ports.ErrNoSession }

// ErrNotFound is returned when no record exists for a client.
var ErrNotFound error = notFoundError{}
