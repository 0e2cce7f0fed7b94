package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

// NotifierFactory returns a Notifier bound to one browser client.
type NotifierFactory func(clientID string) ports.Notifier

// StoreGauge is optionally implemented by AuthMetrics to track live stores.
type StoreGauge interface {
	StoreOpened()
	StoreClosed()
}

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Identity   ports.IdentityProvider
	Profiles   ports.ProfileRepository
	Notifiers  NotifierFactory
	Navigation *NavigationRecorder
	Metrics    AuthMetrics
	Logger     *slog.Logger
	Policy     domainauth.RolePolicy

	// IdleTTL evicts stores not used for this long; defaults to 30m.
	IdleTTL       time.Duration
	TouchTimeout  time.Duration
	RefreshWindow time.Duration
}

// SessionRegistry owns one started SessionStore per browser client id.
type SessionRegistry struct {
	opts   SessionRegistryOptions
	logger *slog.Logger
	stores *gocache.Cache
	group  singleflight.Group

	mu     sync.Mutex
	closed bool
}

// ErrRegistryClosed is returned by Get after Close.
var ErrRegistryClosed = errors.New("session registry closed")

const defaultStoreIdleTTL = 30 * time.Minute

// NewSessionRegistry constructs a SessionRegistry.
func NewSessionRegistry(opts SessionRegistryOptions) (*SessionRegistry, error) {
	if opts.Identity == nil {
		return nil, errors.New("identity provider is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile repository is required")
	}
	if opts.Navigation == nil {
		opts.Navigation = NewNavigationRecorder()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultStoreIdleTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cleanup := opts.IdleTTL / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &SessionRegistry{
		opts:   opts,
		logger: logger.With("component", "session_registry"),
		stores: gocache.New(opts.IdleTTL, cleanup),
	}
	r.stores.OnEvicted(r.evicted)
	return r, nil
}

// evicted closes a store the cache dropped, unless a concurrent Get already
// put the same store back.
func (r *SessionRegistry) evicted(clientID string, v any) {
	store, ok := v.(*SessionStore)
	if !ok {
		return
	}
	r.mu.Lock()
	if cur, ok := r.stores.Get(clientID); ok && cur == v {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	// Close waits for the store loop; keep the cache janitor unblocked.
	go func() {
		store.Close()
		r.storeClosed()
		r.opts.Navigation.Forget(clientID)
		r.logger.Debug("session store evicted", "client_id", clientID)
	}()
}

// Navigation returns the recorder redirects are delivered through.
func (r *SessionRegistry) Navigation() *NavigationRecorder { return r.opts.Navigation }

// Get returns the started store for clientID, creating it on first use.
// Each call extends the store's idle lifetime.
func (r *SessionRegistry) Get(ctx context.Context, clientID string) (*SessionStore, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	store, err := r.touch(clientID)
	if err != nil || store != nil {
		return store, err
	}

	v, err, _ := r.group.Do(clientID, func() (any, error) {
		if cached, err := r.touch(clientID); err != nil || cached != nil {
			return cached, err
		}
		// Set would overwrite an expired entry without the eviction hook.
		r.stores.Delete(clientID)

		store, err := r.build(clientID)
		if err != nil {
			return nil, err
		}
		if err := store.Start(ctx); err != nil {
			return nil, fmt.Errorf("start session store: %w", err)
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			store.Close()
			return nil, ErrRegistryClosed
		}
		r.stores.SetDefault(clientID, store)
		r.mu.Unlock()

		if g, ok := r.opts.Metrics.(StoreGauge); ok {
			g.StoreOpened()
		}
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SessionStore), nil
}

// Rotate moves the signed-in session of clientID to a fresh client id and
// returns the started store for it. The old store is closed. Providers that
// cannot move sessions keep the current id.
func (r *SessionRegistry) Rotate(ctx context.Context, clientID string) (string, *SessionStore, error) {
	mover, ok := r.opts.Identity.(ports.SessionMover)
	if !ok {
		store, err := r.Get(ctx, clientID)
		return clientID, store, err
	}

	next := uuid.NewString()
	if err := mover.MoveSession(ctx, clientID, next); err != nil {
		return "", nil, fmt.Errorf("move session: %w", err)
	}
	r.stores.Delete(clientID)

	store, err := r.Get(ctx, next)
	if err != nil {
		return "", nil, err
	}
	r.logger.DebugContext(ctx, "client id rotated", "from", clientID, "to", next)
	return next, store, nil
}

// touch returns the live store for clientID and extends its idle lifetime.
// It returns nil without error when no open store is cached. The lookup and
// refresh run under mu so evicted never closes a store handed out here.
func (r *SessionRegistry) touch(clientID string) (*SessionStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	v, ok := r.stores.Get(clientID)
	if !ok {
		return nil, nil
	}
	store, ok := v.(*SessionStore)
	if !ok || store.isClosed() {
		return nil, nil
	}
	r.stores.SetDefault(clientID, store)
	return store, nil
}

// Peek returns the store for clientID without creating one.
func (r *SessionRegistry) Peek(clientID string) (*SessionStore, bool) {
	v, ok := r.stores.Get(clientID)
	if !ok {
		return nil, false
	}
	store, ok := v.(*SessionStore)
	return store, ok
}

// Len reports the number of live stores.
func (r *SessionRegistry) Len() int { return r.stores.ItemCount() }

// Close tears down every store concurrently.
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.stores.DeleteExpired()
	items := r.stores.Items()
	r.stores.OnEvicted(nil)
	r.stores.Flush()

	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		store, ok := item.Object.(*SessionStore)
		if !ok {
			continue
		}
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				store.Close()
				r.storeClosed()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return fmt.Errorf("close session store %s: %w", store.ClientID(), gctx.Err())
			}
		})
	}
	return g.Wait()
}

func (r *SessionRegistry) build(clientID string) (*SessionStore, error) {
	var notifier ports.Notifier
	if r.opts.Notifiers != nil {
		notifier = r.opts.Notifiers(clientID)
	}
	return NewSessionStore(SessionStoreOptions{
		ClientID:      clientID,
		Identity:      r.opts.Identity.Client(clientID),
		Profiles:      r.opts.Profiles,
		Notifier:      notifier,
		Navigator:     r.opts.Navigation.For(clientID),
		Metrics:       r.opts.Metrics,
		Logger:        r.opts.Logger,
		Policy:        r.opts.Policy,
		TouchTimeout:  r.opts.TouchTimeout,
		RefreshWindow: r.opts.RefreshWindow,
	})
}

func (r *SessionRegistry) storeClosed() {
	if g, ok := r.opts.Metrics.(StoreGauge); ok {
		g.StoreClosed()
	}
}

