package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
)

const defaultRotateSettle = 2 * time.Second

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Sessions *SessionRegistry
	// HomePath is where a successful login lands; defaults to /admin.
	HomePath string
	// SettleTimeout bounds how long Status waits for a fresh store to settle.
	SettleTimeout time.Duration
}

// AuthService is the HTTP-facing entry point to per-client session stores.
type AuthService struct {
	sessions      *SessionRegistry
	homePath      string
	settleTimeout time.Duration
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	home := opts.HomePath
	if home == "" {
		home = "/admin"
	}
	return &AuthService{
		sessions:      opts.Sessions,
		homePath:      home,
		settleTimeout: opts.SettleTimeout,
	}
}

// CommandResult is the outcome of a login or logout command.
type CommandResult struct {
	OK       bool
	Session  domainauth.Snapshot
	Redirect *PendingRedirect
	// ClientID is set when the browser must switch to a new client id.
	ClientID string
}

// Store returns the session store for clientID.
func (s *AuthService) Store(ctx context.Context, clientID string) (*SessionStore, error) {
	if s.sessions == nil {
		return nil, errors.New("session registry not configured")
	}
	store, err := s.sessions.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get session store: %w", err)
	}
	return store, nil
}

// Login runs the login command against the client's store.
func (s *AuthService) Login(ctx context.Context, clientID, email, password string) (*CommandResult, error) {
	store, err := s.Store(ctx, clientID)
	if err != nil {
		return nil, err
	}

	ok := store.Login(ctx, email, password)
	res := &CommandResult{OK: ok, Session: store.Snapshot(), Redirect: s.takeRedirect(clientID)}
	if !ok {
		return res, nil
	}
	if res.Redirect == nil {
		res.Redirect = &PendingRedirect{Path: s.homePath, ReplaceHistory: true}
	}

	// A signed-in session never keeps the id the browser arrived with.
	next, rotated, err := s.sessions.Rotate(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("rotate client id: %w", err)
	}
	if next == clientID {
		return res, nil
	}
	res.ClientID = next
	res.Session = s.settled(ctx, rotated)
	return res, nil
}

// Logout runs the logout command. The store is created if needed so a persisted
// identity from an earlier process is still signed out.
func (s *AuthService) Logout(ctx context.Context, clientID string) (*CommandResult, error) {
	store, err := s.Store(ctx, clientID)
	if err != nil {
		return nil, err
	}

	ok := store.Logout(ctx)
	return &CommandResult{OK: ok, Session: store.Snapshot(), Redirect: s.takeRedirect(clientID)}, nil
}

// Status returns the client's session, waiting briefly for a fresh store to settle.
func (s *AuthService) Status(ctx context.Context, clientID string) (domainauth.Snapshot, error) {
	store, err := s.Store(ctx, clientID)
	if err != nil {
		return domainauth.Snapshot{}, err
	}
	if s.settleTimeout <= 0 {
		return store.Snapshot(), nil
	}

	wctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()
	snap, err := store.WaitSettled(wctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return snap, err
	}
	if snap.Loading || !snap.Authenticated() {
		return snap, nil
	}
	if fresh, err := store.Revalidate(ctx); err == nil {
		snap = fresh
	}
	return snap, nil
}

// settled waits up to the settle timeout (or a short default) for store.
func (s *AuthService) settled(ctx context.Context, store *SessionStore) domainauth.Snapshot {
	timeout := s.settleTimeout
	if timeout <= 0 {
		timeout = defaultRotateSettle
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	snap, _ := store.WaitSettled(wctx)
	return snap
}

func (s *AuthService) takeRedirect(clientID string) *PendingRedirect {
	p, ok := s.sessions.Navigation().Take(clientID)
	if !ok {
		return nil
	}
	return &p
}
