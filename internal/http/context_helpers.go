package httpx

import (
	"context"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
)

// Unexported context key types avoid collisions across packages.
type (
	clientIDKey struct{}
	sessionKey  struct{}
)

// WithClientID returns a child context carrying the browser client id.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext returns the browser client id set by the ClientID middleware.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey{}).(string)
	return id, ok && id != ""
}

// SetSessionInContext returns a child context that carries a session snapshot.
func SetSessionInContext(ctx context.Context, snap domainauth.Snapshot) context.Context {
	return context.WithValue(ctx, sessionKey{}, snap.Clone())
}

// GetSessionFromContext returns the snapshot the route guard admitted the request with.
func GetSessionFromContext(ctx context.Context) (domainauth.Snapshot, bool) {
	snap, ok := ctx.Value(sessionKey{}).(domainauth.Snapshot)
	return snap, ok
}

// ProfileFromContext returns the authorization profile of the admitted session.
func ProfileFromContext(ctx context.Context) (domainauth.Profile, bool) {
	snap, ok := GetSessionFromContext(ctx)
	if !ok || snap.Profile == nil {
		return domainauth.Profile{}, false
	}
	return *snap.Profile, true
}
