package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityClient    = (*FakeIdentityClient)(nil)
	_ ports.IdentityProvider  = (*FakeIdentityProvider)(nil)
	_ ports.SessionMover      = (*FakeIdentityProvider)(nil)
	_ ports.ProfileRepository = (*MemoryProfiles)(nil)
	_ ports.Notifier          = (*RecordingNotifier)(nil)
	_ ports.Navigator         = (*RecordingNavigator)(nil)
)

// Account is a credential known to FakeIdentityClient.
type Account struct {
	UserID   string
	Email    string
	Password string
}

// FakeIdentityClient simulates an identity provider for one browser client.
// SignInWithPassword and SignOut notify subscribers synchronously, the way a
// provider SDK invokes its listeners from inside the call.
type FakeIdentityClient struct {
	CurrentSessionFunc func(ctx context.Context) (*domainauth.Identity, error)
	SignInFunc         func(ctx context.Context, email, password string) (domainauth.Identity, error)
	SignOutFunc        func(ctx context.Context) error
	UpdatePasswordFunc func(ctx context.Context, newPassword string) error
	RefreshFunc        func(ctx context.Context) (domainauth.Identity, error)

	// BeforeSubscribe, when set, runs at the start of every Subscribe call.
	BeforeSubscribe func()

	// FireInitial makes Subscribe deliver INITIAL_SESSION with the current session.
	FireInitial bool

	mu           sync.Mutex
	accounts     map[string]Account
	session      *domainauth.Identity
	handlers     map[int]ports.SessionChangeHandler
	nextHandler  int
	tokenSeq     int
	signOutCalls int
	signInCalls  int
	refreshCalls int
	passwords    []string
}

// NewFakeIdentityClient creates a client that accepts the given accounts.
func NewFakeIdentityClient(accounts ...Account) *FakeIdentityClient {
	f := &FakeIdentityClient{
		accounts: make(map[string]Account, len(accounts)),
		handlers: make(map[int]ports.SessionChangeHandler),
	}
	for _, a := range accounts {
		f.accounts[a.Email] = a
	}
	return f
}

// SetSession installs a persisted session without notifying subscribers.
func (f *FakeIdentityClient) SetSession(id *domainauth.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == nil {
		f.session = nil
		return
	}
	cp := *id
	f.session = &cp
}

// Emit delivers a session change to every subscriber.
func (f *FakeIdentityClient) Emit(event domainauth.SessionEvent, id *domainauth.Identity) {
	f.mu.Lock()
	if id != nil {
		cp := *id
		f.session = &cp
	} else if event == domainauth.EventSignedOut {
		f.session = nil
	}
	handlers := make([]ports.SessionChangeHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(domainauth.SessionChange{Event: event, Identity: copyIdentity(id)})
	}
}

func (f *FakeIdentityClient) CurrentSession(ctx context.Context) (*domainauth.Identity, error) {
	if f.CurrentSessionFunc != nil {
		return f.CurrentSessionFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyIdentity(f.session), nil
}

func (f *FakeIdentityClient) Subscribe(_ context.Context, handler ports.SessionChangeHandler) (func(), error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if f.BeforeSubscribe != nil {
		f.BeforeSubscribe()
	}
	f.mu.Lock()
	id := f.nextHandler
	f.nextHandler++
	f.handlers[id] = handler
	current := copyIdentity(f.session)
	fire := f.FireInitial
	f.mu.Unlock()

	if fire {
		handler(domainauth.SessionChange{Event: domainauth.EventInitialSession, Identity: current})
	}
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}, nil
}

func (f *FakeIdentityClient) SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error) {
	f.mu.Lock()
	f.signInCalls++
	f.mu.Unlock()

	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, email, password)
	}

	f.mu.Lock()
	acct, ok := f.accounts[email]
	if !ok || acct.Password != password {
		f.mu.Unlock()
		return domainauth.Identity{}, ports.ErrInvalidCredentials
	}
	f.tokenSeq++
	id := domainauth.Identity{
		UserID:    acct.UserID,
		Email:     acct.Email,
		Token:     fmt.Sprintf("token-%d", f.tokenSeq),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	f.mu.Unlock()

	f.Emit(domainauth.EventSignedIn, &id)
	return id, nil
}

func (f *FakeIdentityClient) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	f.mu.Unlock()

	if f.SignOutFunc != nil {
		if err := f.SignOutFunc(ctx); err != nil {
			return err
		}
	}
	f.Emit(domainauth.EventSignedOut, nil)
	return nil
}

func (f *FakeIdentityClient) UpdatePassword(ctx context.Context, newPassword string) error {
	if f.UpdatePasswordFunc != nil {
		return f.UpdatePasswordFunc(ctx, newPassword)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return ports.ErrNoSession
	}
	f.passwords = append(f.passwords, newPassword)
	return nil
}

// RefreshSession renews the current session with a new token valid for an
// hour and announces TOKEN_REFRESHED.
func (f *FakeIdentityClient) RefreshSession(ctx context.Context) (domainauth.Identity, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()

	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx)
	}

	f.mu.Lock()
	if f.session == nil {
		f.mu.Unlock()
		return domainauth.Identity{}, ports.ErrNoSession
	}
	f.tokenSeq++
	id := *f.session
	id.Token = fmt.Sprintf("token-%d", f.tokenSeq)
	id.ExpiresAt = time.Now().Add(time.Hour)
	f.mu.Unlock()

	f.Emit(domainauth.EventTokenRefreshed, &id)
	return id, nil
}

// RefreshCalls reports how many times RefreshSession was invoked.
func (f *FakeIdentityClient) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// SignOutCalls reports how many times SignOut was invoked.
func (f *FakeIdentityClient) SignOutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// SignInCalls reports how many times SignInWithPassword was invoked.
func (f *FakeIdentityClient) SignInCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls
}

// Subscribers reports the number of live subscriptions.
func (f *FakeIdentityClient) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// FakeIdentityProvider hands out one FakeIdentityClient per client id.
// Every client accepts the same accounts.
type FakeIdentityProvider struct {
	mu       sync.Mutex
	accounts []Account
	clients  map[string]*FakeIdentityClient
	moves    [][2]string
}

// NewFakeIdentityProvider creates a provider accepting accounts.
func NewFakeIdentityProvider(accounts ...Account) *FakeIdentityProvider {
	return &FakeIdentityProvider{accounts: accounts, clients: make(map[string]*FakeIdentityClient)}
}

func (p *FakeIdentityProvider) Client(clientID string) ports.IdentityClient {
	return p.Fake(clientID)
}

// Fake returns the concrete client for clientID, creating it on first use.
func (p *FakeIdentityProvider) Fake(clientID string) *FakeIdentityClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[clientID]
	if !ok {
		c = NewFakeIdentityClient(p.accounts...)
		p.clients[clientID] = c
	}
	return c
}

// MoveSession copies the session of from onto to under a new token and signs
// from out.
func (p *FakeIdentityProvider) MoveSession(ctx context.Context, from, to string) error {
	src := p.Fake(from)
	cur, err := src.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if cur == nil {
		return ports.ErrNoSession
	}

	moved := *cur
	moved.Token = cur.Token + "@" + to
	p.Fake(to).SetSession(&moved)
	src.Emit(domainauth.EventSignedOut, nil)

	p.mu.Lock()
	p.moves = append(p.moves, [2]string{from, to})
	p.mu.Unlock()
	return nil
}

// Moves returns the (from, to) pairs passed to MoveSession.
func (p *FakeIdentityProvider) Moves() [][2]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]string(nil), p.moves...)
}

// MemoryProfiles is an in-memory ProfileRepository.
type MemoryProfiles struct {
	GetErr   error
	TouchErr error

	mu        sync.Mutex
	profiles  map[string]domainauth.Profile
	gets      []string
	touches   []string
	touchedCh chan string
}

// NewMemoryProfiles creates a repository seeded with profiles.
func NewMemoryProfiles(profiles ...domainauth.Profile) *MemoryProfiles {
	m := &MemoryProfiles{
		profiles:  make(map[string]domainauth.Profile, len(profiles)),
		touchedCh: make(chan string, 16),
	}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

// Put inserts or replaces a profile.
func (m *MemoryProfiles) Put(p domainauth.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *MemoryProfiles) GetByID(_ context.Context, id string) (domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, id)
	if m.GetErr != nil {
		return domainauth.Profile{}, m.GetErr
	}
	p, ok := m.profiles[id]
	if !ok {
		return domainauth.Profile{}, fmt.Errorf("profile %s: %w", id, ports.ErrProfileNotFound)
	}
	return p, nil
}

func (m *MemoryProfiles) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	m.touches = append(m.touches, id)
	err := m.TouchErr
	if err == nil {
		if p, ok := m.profiles[id]; ok {
			ts := at
			p.LastLogin = &ts
			m.profiles[id] = p
		}
	}
	m.mu.Unlock()

	select {
	case m.touchedCh <- id:
	default:
	}
	return err
}

func (m *MemoryProfiles) UpdateDetails(_ context.Context, id, fullName, contactNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ports.ErrProfileNotFound
	}
	p.FullName = fullName
	p.ContactNumber = contactNumber
	m.profiles[id] = p
	return nil
}

// Gets returns the ids passed to GetByID in call order.
func (m *MemoryProfiles) Gets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.gets...)
}

// Touched delivers user ids as TouchLastLogin is called.
func (m *MemoryProfiles) Touched() <-chan string { return m.touchedCh }

// RecordingNotifier captures notifications.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []domainauth.Notification
}

func (r *RecordingNotifier) Notify(_ context.Context, n domainauth.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of captured notifications.
func (r *RecordingNotifier) Sent() []domainauth.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainauth.Notification(nil), r.sent...)
}

// Redirect is a captured navigation.
type Redirect struct {
	Path string
	Opts ports.RedirectOptions
}

// RecordingNavigator captures redirects.
type RecordingNavigator struct {
	mu        sync.Mutex
	redirects []Redirect
}

func (r *RecordingNavigator) Redirect(_ context.Context, path string, opts ports.RedirectOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, Redirect{Path: path, Opts: opts})
}

// Redirects returns a copy of captured redirects.
func (r *RecordingNavigator) Redirects() []Redirect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Redirect(nil), r.redirects...)
}

func copyIdentity(id *domainauth.Identity) *domainauth.Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
