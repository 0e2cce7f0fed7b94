package httpx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
)

func TestClientIDFromContext(t *testing.T) {
	_, ok := ClientIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = ClientIDFromContext(WithClientID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := ClientIDFromContext(WithClientID(context.Background(), "cid-1"))
	assert.True(t, ok)
	assert.Equal(t, "cid-1", id)
}

func TestSessionInContext(t *testing.T) {
	_, ok := GetSessionFromContext(context.Background())
	assert.False(t, ok)
	_, ok = ProfileFromContext(context.Background())
	assert.False(t, ok)

	prof := &domainauth.Profile{ID: "u1", Role: domainauth.RoleAdmin}
	snap := domainauth.Snapshot{
		Identity: &domainauth.Identity{UserID: "u1"},
		Profile:  prof,
		State:    domainauth.StateAuthorized,
	}
	ctx := SetSessionInContext(context.Background(), snap)

	// Later edits to the caller's copy do not leak into the request.
	prof.Role = domainauth.RoleStudent

	got, ok := ProfileFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, domainauth.RoleAdmin, got.Role)

	s, ok := GetSessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, domainauth.StateAuthorized, s.State)
}
