package localauth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/gpchangipur/portal/internal/core"
	"github.com/gpchangipur/portal/internal/mocks"
	"github.com/gpchangipur/portal/internal/ports"
)

func newVerifier(t *testing.T) (*mocks.MockUserRepository, *Verifier) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	v, err := NewVerifier(repo, bcrypt.MinCost)
	require.NoError(t, err)
	return repo, v
}

func TestVerifier_Verify(t *testing.T) {
	repo, v := newVerifier(t)
	ctx := context.Background()
	hash, err := HashPassword("s3cret!", bcrypt.MinCost)
	require.NoError(t, err)

	repo.EXPECT().
		GetByEmail(ctx, "principal@gpc.edu.bd").
		Return(&core.User{ID: "u-1", Email: "principal@gpc.edu.bd", PasswordHash: hash}, nil).
		Times(2)

	p, err := v.Verify(ctx, " principal@gpc.edu.bd ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, ports.Principal{UserID: "u-1", Email: "principal@gpc.edu.bd"}, p)

	_, err = v.Verify(ctx, "principal@gpc.edu.bd", "wrong")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)
}

func TestVerifier_Verify_UnknownUser(t *testing.T) {
	repo, v := newVerifier(t)
	ctx := context.Background()

	repo.EXPECT().GetByEmail(ctx, "ghost@gpc.edu.bd").Return(nil, core.ErrUserNotFound)

	_, err := v.Verify(ctx, "ghost@gpc.edu.bd", "whatever")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)
}

func TestVerifier_Verify_EmptyInputSkipsLookup(t *testing.T) {
	_, v := newVerifier(t)

	_, err := v.Verify(context.Background(), "", "x")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)
	_, err = v.Verify(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, ports.ErrInvalidCredentials)
}

func TestVerifier_Verify_RepositoryError(t *testing.T) {
	repo, v := newVerifier(t)
	repo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := v.Verify(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrInvalidCredentials)
}

func TestVerifier_SetPassword(t *testing.T) {
	repo, v := newVerifier(t)
	ctx := context.Background()

	repo.EXPECT().
		UpdatePasswordHash(ctx, "u-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, hash string) error {
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("n3w-pass")))
			return nil
		})

	require.NoError(t, v.SetPassword(ctx, "u-1", "n3w-pass"))

	err := v.SetPassword(ctx, "u-1", "short")
	msg, ok := ports.UserMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Password must be at least 6 characters", msg)
}

func TestNewVerifier_RequiresRepository(t *testing.T) {
	_, err := NewVerifier(nil, 0)
	assert.Error(t, err)
}
