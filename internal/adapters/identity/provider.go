// Package identity is the portal's identity provider: it verifies credentials,
// issues access tokens, persists one session per browser client, and reports
// session changes to subscribers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

// ProviderOptions groups the collaborators of Provider.
type ProviderOptions struct {
	Verifier ports.CredentialVerifier
	Tokens   ports.TokenStore
	Events   ports.EventBus
	Issuer   *TokenIssuer
	Logger   *slog.Logger
}

// Provider hands out per-client identity clients.
type Provider struct {
	verifier ports.CredentialVerifier
	tokens   ports.TokenStore
	events   ports.EventBus
	issuer   *TokenIssuer
	logger   *slog.Logger
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.SessionMover     = (*Provider)(nil)
)

// NewProvider validates opts and constructs a Provider.
func NewProvider(opts ProviderOptions) (*Provider, error) {
	switch {
	case opts.Verifier == nil:
		return nil, errors.New("identity: credential verifier is required")
	case opts.Tokens == nil:
		return nil, errors.New("identity: token store is required")
	case opts.Events == nil:
		return nil, errors.New("identity: event bus is required")
	case opts.Issuer == nil:
		return nil, errors.New("identity: token issuer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		verifier: opts.Verifier,
		tokens:   opts.Tokens,
		events:   opts.Events,
		issuer:   opts.Issuer,
		logger:   logger.With("component", "identity"),
	}, nil
}

// Client returns the identity client for one browser client.
func (p *Provider) Client(clientID string) ports.IdentityClient {
	return &Client{p: p, clientID: clientID}
}

// MoveSession re-issues the session of client from to client to. Tokens are
// bound to the client they were issued for, so the old one is discarded and
// subscribers of from hear SIGNED_OUT.
func (p *Provider) MoveSession(ctx context.Context, from, to string) error {
	if from == to {
		return errors.New("identity: cannot move a session onto itself")
	}
	src := &Client{p: p, clientID: from}
	cur, err := src.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if cur == nil {
		return ports.ErrNoSession
	}

	dst := &Client{p: p, clientID: to}
	id, err := dst.issue(ctx, ports.Principal{UserID: cur.UserID, Email: cur.Email})
	if err != nil {
		return err
	}
	if err := p.tokens.Delete(ctx, from); err != nil {
		return fmt.Errorf("delete moved session: %w", err)
	}
	src.publish(ctx, domainauth.EventSignedOut, nil)
	dst.publish(ctx, domainauth.EventSignedIn, &id)
	p.logger.InfoContext(ctx, "session moved", "from", from, "to", to, "user_id", id.UserID)
	return nil
}

// Client is the identity provider as seen by one browser client.
type Client struct {
	p        *Provider
	clientID string
}

var _ ports.IdentityClient = (*Client)(nil)

// CurrentSession returns the persisted identity, or nil when there is none or
// the stored token no longer verifies.
func (c *Client) CurrentSession(ctx context.Context) (*domainauth.Identity, error) {
	rec, err := c.p.tokens.Get(ctx, c.clientID)
	if err != nil {
		if errors.Is(err, ports.ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	if _, err := c.p.issuer.Parse(c.clientID, rec.Token); err != nil {
		c.p.logger.InfoContext(ctx, "discarding unusable session", "client_id", c.clientID, "error", err)
		if derr := c.p.tokens.Delete(ctx, c.clientID); derr != nil {
			c.p.logger.WarnContext(ctx, "delete unusable session failed", "client_id", c.clientID, "error", derr)
		}
		return nil, nil
	}
	return &domainauth.Identity{UserID: rec.UserID, Email: rec.Email, Token: rec.Token, ExpiresAt: rec.ExpiresAt}, nil
}

// Subscribe registers handler for this client's session changes and then
// delivers INITIAL_SESSION with the persisted session from a separate goroutine.
// Deliveries to one handler never overlap, and none happen after unsubscribe returns.
func (c *Client) Subscribe(ctx context.Context, handler ports.SessionChangeHandler) (func(), error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	g := &guardedHandler{fn: handler}
	unsub, err := c.p.events.Subscribe(ctx, c.clientID, g.deliver)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		// Reading under the delivery lock keeps INITIAL_SESSION from overtaking
		// a newer change that the bus delivered first.
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.closed {
			return
		}
		id, err := c.CurrentSession(ctx)
		if err != nil {
			c.p.logger.WarnContext(ctx, "initial session read failed", "client_id", c.clientID, "error", err)
			return
		}
		g.fn(domainauth.SessionChange{Event: domainauth.EventInitialSession, Identity: id})
	}()

	return func() {
		g.close()
		unsub()
	}, nil
}

// SignInWithPassword verifies credentials, persists a fresh token, and announces SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error) {
	principal, err := c.p.verifier.Verify(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return domainauth.Identity{}, err
	}
	id, err := c.issue(ctx, principal)
	if err != nil {
		return domainauth.Identity{}, err
	}
	c.publish(ctx, domainauth.EventSignedIn, &id)
	c.p.logger.InfoContext(ctx, "signed in", "client_id", c.clientID, "user_id", id.UserID)
	return id, nil
}

// SignOut removes the persisted session and announces SIGNED_OUT.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.p.tokens.Delete(ctx, c.clientID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.publish(ctx, domainauth.EventSignedOut, nil)
	return nil
}

// UpdatePassword changes the password of the signed-in user when the
// credential source supports it, and announces USER_UPDATED.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	id, err := c.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if id == nil {
		return ports.ErrNoSession
	}
	setter, ok := c.p.verifier.(ports.PasswordSetter)
	if !ok {
		return ports.ErrUnsupported
	}
	if err := setter.SetPassword(ctx, id.UserID, newPassword); err != nil {
		return err
	}
	c.publish(ctx, domainauth.EventUserUpdated, id)
	return nil
}

// RefreshSession re-issues the token of the current session and announces TOKEN_REFRESHED.
func (c *Client) RefreshSession(ctx context.Context) (domainauth.Identity, error) {
	cur, err := c.CurrentSession(ctx)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if cur == nil {
		return domainauth.Identity{}, ports.ErrNoSession
	}
	id, err := c.issue(ctx, ports.Principal{UserID: cur.UserID, Email: cur.Email})
	if err != nil {
		return domainauth.Identity{}, err
	}
	c.publish(ctx, domainauth.EventTokenRefreshed, &id)
	return id, nil
}

func (c *Client) issue(ctx context.Context, p ports.Principal) (domainauth.Identity, error) {
	id, err := c.p.issuer.Issue(c.clientID, p)
	if err != nil {
		return domainauth.Identity{}, err
	}
	rec := ports.TokenRecord{UserID: id.UserID, Email: id.Email, Token: id.Token, ExpiresAt: id.ExpiresAt}
	if err := c.p.tokens.Save(ctx, c.clientID, rec); err != nil {
		return domainauth.Identity{}, fmt.Errorf("save session: %w", err)
	}
	return id, nil
}

// publish announces a change. The persisted state is already authoritative, so
// a failed publish only delays other subscribers until their next read.
func (c *Client) publish(ctx context.Context, event domainauth.SessionEvent, id *domainauth.Identity) {
	change := domainauth.SessionChange{Event: event, Identity: id}
	if err := c.p.events.Publish(context.WithoutCancel(ctx), c.clientID, change); err != nil {
		c.p.logger.ErrorContext(ctx, "publish session change failed", "client_id", c.clientID, "event", event, "error", err)
	}
}

type guardedHandler struct {
	mu     sync.Mutex
	closed bool
	fn     ports.SessionChangeHandler
}

func (g *guardedHandler) deliver(change domainauth.SessionChange) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.fn(change)
	}
}

func (g *guardedHandler) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
