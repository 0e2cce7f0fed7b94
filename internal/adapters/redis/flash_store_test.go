package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/testutil"
)

func TestFlashStore_PushAndDrain(t *testing.T) {
	mr, client := testutil.NewMiniRedis(t)
	store := NewFlashStore(FlashStoreOptions{Client: client, TTL: time.Minute})
	ctx := context.Background()

	store.Notifier("cid-1").Notify(ctx, domainauth.Notification{
		Severity: domainauth.SeverityDestructive, Title: "Access denied", Description: "Only administrators can access this portal.",
	})
	require.NoError(t, store.Push(ctx, "cid-1", domainauth.Notification{Severity: domainauth.SeverityInfo, Title: "Logged out successfully"}))

	assert.Equal(t, time.Minute, mr.TTL("flash:cid-1"))

	got, err := store.Drain(ctx, "cid-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Access denied", got[0].Title)
	assert.Equal(t, domainauth.SeverityDestructive, got[0].Severity)
	assert.Equal(t, "Logged out successfully", got[1].Title)

	got, err = store.Drain(ctx, "cid-1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, mr.Exists("flash:cid-1"))
}

func TestFlashStore_KeepsMostRecent(t *testing.T) {
	_, client := testutil.NewMiniRedis(t)
	store := NewFlashStore(FlashStoreOptions{Client: client})
	ctx := context.Background()

	for i := range maxFlashPerClient + 5 {
		require.NoError(t, store.Push(ctx, "cid-1", domainauth.Notification{Title: fmt.Sprintf("n%d", i)}))
	}
	got, err := store.Drain(ctx, "cid-1")
	require.NoError(t, err)
	require.Len(t, got, maxFlashPerClient)
	assert.Equal(t, "n5", got[0].Title)
}

func TestFlashStore_DropsMalformedEntries(t *testing.T) {
	mr, client := testutil.NewMiniRedis(t)
	store := NewFlashStore(FlashStoreOptions{Client: client})

	_, err := mr.RPush("flash:cid-1", "not json", `{"severity":"info","title":"ok"}`)
	require.NoError(t, err)

	got, err := store.Drain(context.Background(), "cid-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Title)

	got, err = store.Drain(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
