package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

const (
	defaultFlashPrefix = "flash:"
	defaultFlashTTL    = 5 * time.Minute
	maxFlashPerClient  = 20
)

// FlashStoreOptions configures FlashStore.
type FlashStoreOptions struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
	Logger *slog.Logger
}

// FlashStore queues user-facing notifications per browser client until the
// next response for that client picks them up.
type FlashStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewFlashStore creates a FlashStore.
func NewFlashStore(opts FlashStoreOptions) *FlashStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultFlashPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultFlashTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FlashStore{client: opts.Client, prefix: prefix, ttl: ttl, logger: logger.With("component", "flash_store")}
}

// Push appends n to the client's queue and refreshes its expiry.
// The queue keeps only the most recent entries.
func (s *FlashStore) Push(ctx context.Context, clientID string, n domainauth.Notification) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := s.prefix + clientID
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, payload)
		p.LTrim(ctx, key, -maxFlashPerClient, -1)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Drain returns and removes every queued notification for clientID, oldest first.
func (s *FlashStore) Drain(ctx context.Context, clientID string) ([]domainauth.Notification, error) {
	if clientID == "" {
		return nil, nil
	}
	key := s.prefix + clientID

	var lr *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		lr = p.LRange(ctx, key, 0, -1)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain notifications: %w", err)
	}

	raw := lr.Val()
	out := make([]domainauth.Notification, 0, len(raw))
	for _, item := range raw {
		var n domainauth.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			s.logger.WarnContext(ctx, "dropping malformed notification", "client_id", clientID, "error", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Notifier returns a ports.Notifier bound to clientID. Delivery failures are
// logged and otherwise ignored.
func (s *FlashStore) Notifier(clientID string) ports.Notifier {
	return flashNotifier{store: s, clientID: clientID}
}

type flashNotifier struct {
	store    *FlashStore
	clientID string
}

func (f flashNotifier) Notify(ctx context.Context, n domainauth.Notification) {
	if err := f.store.Push(context.WithoutCancel(ctx), f.clientID, n); err != nil {
		f.store.logger.ErrorContext(ctx, "queue notification failed", "client_id", f.clientID, "error", err)
	}
}
