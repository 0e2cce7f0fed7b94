// Package mocks provides mock implementations for testing the portal services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockNoticeRepository(ctrl)
//	mockRepo.EXPECT().GetByID(gomock.Any(), "n-1").Return(notice, nil)
package mocks

// Generate mock for NoticeRepository interface from internal/core package.
// This creates MockNoticeRepository with methods for all NoticeRepository interface methods:
// Create, GetByID, List, ListPublished, Update, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notice_repository_mock.go github.com/gpchangipur/portal/internal/core NoticeRepository

// Generate mock for GalleryRepository interface from internal/core package.
// This creates MockGalleryRepository with methods for all GalleryRepository interface methods:
// Create, GetByID, List, ListPublished, Update, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=gallery_repository_mock.go github.com/gpchangipur/portal/internal/core GalleryRepository

// Generate mock for UserRepository interface from internal/core package.
// This creates MockUserRepository with methods for all UserRepository interface methods:
// Create, GetByEmail, GetByID, UpdatePasswordHash
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/gpchangipur/portal/internal/core UserRepository

// Generate mock for ProfileRepository interface from internal/ports package.
// This creates MockProfileRepository with methods for all ProfileRepository interface methods:
// GetByID, TouchLastLogin, UpdateDetails
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_repository_mock.go github.com/gpchangipur/portal/internal/ports ProfileRepository

// Generate mock for CredentialVerifier interface from internal/ports package.
// This creates MockCredentialVerifier with methods for all CredentialVerifier interface methods:
// Verify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_verifier_mock.go github.com/gpchangipur/portal/internal/ports CredentialVerifier

// Generate mock for TokenStore interface from internal/ports package.
// This creates MockTokenStore with methods for all TokenStore interface methods:
// Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_store_mock.go github.com/gpchangipur/portal/internal/ports TokenStore
