package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

const defaultEventChannelPrefix = "portal:auth:"

// EventBusOptions configures EventBus.
type EventBusOptions struct {
	Client        redis.UniversalClient
	ChannelPrefix string
	Logger        *slog.Logger
}

// EventBus fans session changes out over Redis pub/sub so every portal
// replica serving a client sees the same sequence of events.
type EventBus struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ ports.EventBus = (*EventBus)(nil)

// NewEventBus creates an EventBus.
func NewEventBus(opts EventBusOptions) *EventBus {
	prefix := opts.ChannelPrefix
	if prefix == "" {
		prefix = defaultEventChannelPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{client: opts.Client, prefix: prefix, logger: logger.With("component", "auth_event_bus")}
}

// Channel returns the pub/sub channel used for clientID.
func (b *EventBus) Channel(clientID string) string { return b.prefix + clientID }

// Publish sends change to every subscriber of clientID.
func (b *EventBus) Publish(ctx context.Context, clientID string, change domainauth.SessionChange) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal session change: %w", err)
	}
	if err := b.client.Publish(ctx, b.Channel(clientID), payload).Err(); err != nil {
		return fmt.Errorf("publish session change: %w", err)
	}
	return nil
}

// Subscribe delivers changes for clientID to handler, in publish order, on a
// dedicated goroutine. It returns once the subscription is live, so a Publish
// issued after Subscribe returns is never missed.
func (b *EventBus) Subscribe(ctx context.Context, clientID string, handler ports.SessionChangeHandler) (func(), error) {
	if clientID == "" {
		return nil, errors.New("client ID cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	channel := b.Channel(clientID)
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var change domainauth.SessionChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				b.logger.Warn("dropping malformed session change", "client_id", clientID, "error", err)
				continue
			}
			handler(change)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				b.logger.Debug("close subscription", "client_id", clientID, "error", err)
			}
			<-done
		})
	}, nil
}
