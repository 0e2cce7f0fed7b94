package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	apperrors "github.com/gpchangipur/portal/internal/errors"
	"github.com/gpchangipur/portal/internal/ports"
)

const (
	minFullNameLen    = 2
	maxFullNameLen    = 100
	maxContactLen     = 20
	minNewPasswordLen = 6
)

// UpdateProfileRequest carries editable profile fields.
type UpdateProfileRequest struct {
	FullName      string `json:"full_name"`
	ContactNumber string `json:"contact_number"`
}

// Validate trims and checks the request.
func (r *UpdateProfileRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.ContactNumber = strings.TrimSpace(r.ContactNumber)

	n := utf8.RuneCountInString(r.FullName)
	if n < minFullNameLen {
		return apperrors.ValidationField("full_name", "Name must be at least 2 characters")
	}
	if n > maxFullNameLen {
		return apperrors.ValidationField("full_name", "Name cannot exceed 100 characters")
	}
	if len(r.ContactNumber) > maxContactLen {
		return apperrors.ValidationField("contact_number", "Contact number cannot exceed 20 characters")
	}
	for _, c := range r.ContactNumber {
		if (c < '0' || c > '9') && c != '+' && c != '-' && c != ' ' {
			return apperrors.ValidationField("contact_number", "Contact number may only contain digits, spaces, + and -")
		}
	}
	return nil
}

// ChangePasswordRequest carries a new password and its confirmation.
type ChangePasswordRequest struct {
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks length and confirmation.
func (r *ChangePasswordRequest) Validate() error {
	if utf8.RuneCountInString(r.NewPassword) < minNewPasswordLen {
		return apperrors.ValidationField("new_password", "Password must be at least 6 characters")
	}
	if r.NewPassword != r.ConfirmPassword {
		return apperrors.ValidationField("confirm_password", "Passwords do not match")
	}
	return nil
}

// SettingsServiceOptions groups dependencies for SettingsService.
type SettingsServiceOptions struct {
	Profiles  ports.ProfileRepository
	Notifiers NotifierFactory
	Logger    *slog.Logger
}

// SettingsService lets an authorized user edit their own profile and password.
type SettingsService struct {
	profiles  ports.ProfileRepository
	notifiers NotifierFactory
	logger    *slog.Logger
}

// NewSettingsService constructs a new SettingsService.
func NewSettingsService(opts SettingsServiceOptions) *SettingsService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{profiles: opts.Profiles, notifiers: opts.Notifiers, logger: logger}
}

// UpdateProfile validates and stores the profile fields, then refreshes the session copy.
func (s *SettingsService) UpdateProfile(ctx context.Context, store *SessionStore, req UpdateProfileRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	snap := store.Snapshot()
	if snap.Identity == nil {
		return ports.ErrNoSession
	}

	if err := s.profiles.UpdateDetails(ctx, snap.Identity.UserID, req.FullName, req.ContactNumber); err != nil {
		s.logger.ErrorContext(ctx, "update profile failed", "user_id", snap.Identity.UserID, "error", err)
		s.notify(ctx, store, domainauth.SeverityDestructive, "Error", "Failed to update profile. Please try again.")
		return fmt.Errorf("update profile: %w", err)
	}
	if err := store.RefreshProfile(ctx); err != nil {
		s.logger.WarnContext(ctx, "refresh profile after update failed", "error", err)
	}
	s.notify(ctx, store, domainauth.SeverityInfo, "Success", "Profile has been updated successfully")
	return nil
}

// ChangePassword validates and applies a new password through the identity provider.
func (s *SettingsService) ChangePassword(ctx context.Context, store *SessionStore, req ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := store.UpdatePassword(ctx, req.NewPassword); err != nil {
		if errors.Is(err, ports.ErrNoSession) {
			return err
		}
		s.logger.ErrorContext(ctx, "update password failed", "client_id", store.ClientID(), "error", err)
		s.notify(ctx, store, domainauth.SeverityDestructive, "Error", "Failed to update password. Please try again.")
		return fmt.Errorf("update password: %w", err)
	}
	s.notify(ctx, store, domainauth.SeverityInfo, "Success", "Password has been updated successfully")
	return nil
}

func (s *SettingsService) notify(ctx context.Context, store *SessionStore, sev domainauth.Severity, title, desc string) {
	if s.notifiers == nil {
		return
	}
	s.notifiers(store.ClientID()).Notify(ctx, domainauth.Notification{Severity: sev, Title: title, Description: desc})
}
