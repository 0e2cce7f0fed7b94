package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	apperrors "github.com/gpchangipur/portal/internal/errors"
	"github.com/gpchangipur/portal/internal/mocks"
	mockauth "github.com/gpchangipur/portal/internal/mocks/auth"
	"github.com/gpchangipur/portal/internal/ports"
)

func signedInHarness(t *testing.T) *storeHarness {
	t.Helper()
	idp := mockauth.NewFakeIdentityClient(adminAccount)
	idp.SetSession(adminSession("a1"))
	h := newStoreHarness(t, idp, mockauth.NewMemoryProfiles(adminProfile))
	snap := h.start(t)
	require.Equal(t, domainauth.StateAuthorized, snap.State)
	return h
}

func TestUpdateProfileRequest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		req   UpdateProfileRequest
		field string
	}{
		{name: "valid", req: UpdateProfileRequest{FullName: " Rahim Uddin ", ContactNumber: "+880 1711-000000"}},
		{name: "valid without contact", req: UpdateProfileRequest{FullName: "Al"}},
		{name: "short name", req: UpdateProfileRequest{FullName: "R"}, field: "full_name"},
		{name: "contact with letters", req: UpdateProfileRequest{FullName: "Rahim", ContactNumber: "call me"}, field: "contact_number"},
		{name: "contact too long", req: UpdateProfileRequest{FullName: "Rahim", ContactNumber: "012345678901234567890"}, field: "contact_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestChangePasswordRequest_Validate(t *testing.T) {
	short := ChangePasswordRequest{NewPassword: "abc", ConfirmPassword: "abc"}
	assert.Equal(t, "new_password", apperrors.GetField(short.Validate()))

	mismatch := ChangePasswordRequest{NewPassword: "abcdef", ConfirmPassword: "abcdeg"}
	err := mismatch.Validate()
	require.Error(t, err)
	assert.Equal(t, "Passwords do not match", err.Error())

	ok := ChangePasswordRequest{NewPassword: "abcdef", ConfirmPassword: "abcdef"}
	assert.NoError(t, ok.Validate())
}

func TestSettingsService_UpdateProfile(t *testing.T) {
	h := signedInHarness(t)
	notifier := &mockauth.RecordingNotifier{}
	svc := NewSettingsService(SettingsServiceOptions{
		Profiles:  h.profiles,
		Notifiers: func(string) ports.Notifier { return notifier },
	})

	err := svc.UpdateProfile(context.Background(), h.store, UpdateProfileRequest{FullName: "Head of School", ContactNumber: "01711"})

	require.NoError(t, err)
	snap := h.store.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Head of School", snap.Profile.FullName)
	assert.Equal(t, "01711", snap.Profile.ContactNumber)
	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Profile has been updated successfully", sent[0].Description)
}

func TestSettingsService_UpdateProfile_RepositoryError(t *testing.T) {
	h := signedInHarness(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProfileRepository(ctrl)
	notifier := &mockauth.RecordingNotifier{}
	svc := NewSettingsService(SettingsServiceOptions{
		Profiles:  repo,
		Notifiers: func(string) ports.Notifier { return notifier },
	})

	repo.EXPECT().
		UpdateDetails(gomock.Any(), adminAccount.UserID, "Head of School", "").
		Return(errors.New("connection refused")).
		Times(1)

	err := svc.UpdateProfile(context.Background(), h.store, UpdateProfileRequest{FullName: "Head of School"})

	require.Error(t, err)
	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domainauth.SeverityDestructive, sent[0].Severity)
	assert.Equal(t, "Failed to update profile. Please try again.", sent[0].Description)
}

func TestSettingsService_UpdateProfile_ValidationSkipsRepository(t *testing.T) {
	h := signedInHarness(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProfileRepository(ctrl)
	svc := NewSettingsService(SettingsServiceOptions{Profiles: repo})

	err := svc.UpdateProfile(context.Background(), h.store, UpdateProfileRequest{FullName: "x"})

	assert.True(t, apperrors.IsValidation(err))
}

func TestSettingsService_ChangePassword(t *testing.T) {
	h := signedInHarness(t)
	notifier := &mockauth.RecordingNotifier{}
	svc := NewSettingsService(SettingsServiceOptions{
		Profiles:  h.profiles,
		Notifiers: func(string) ports.Notifier { return notifier },
	})

	err := svc.ChangePassword(context.Background(), h.store, ChangePasswordRequest{NewPassword: "s3cret!", ConfirmPassword: "s3cret!"})
	require.NoError(t, err)
	require.Len(t, notifier.Sent(), 1)
	assert.Equal(t, "Password has been updated successfully", notifier.Sent()[0].Description)

	h.idp.UpdatePasswordFunc = func(context.Context, string) error { return errors.New("weak password") }
	err = svc.ChangePassword(context.Background(), h.store, ChangePasswordRequest{NewPassword: "s3cret!", ConfirmPassword: "s3cret!"})
	require.Error(t, err)
	sent := notifier.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Failed to update password. Please try again.", sent[1].Description)
}
