package data

import (
	"errors"

	"github.com/gpchangipur/portal/internal/core"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrUserNotFound is returned when no local credential row matches.
	ErrUserNotFound = core.ErrUserNotFound
	// ErrNoticeNotFound is returned when a notice is not found.
	ErrNoticeNotFound = errors.New("notice not found")
	// ErrGalleryItemNotFound is returned when a gallery item is not found.
	ErrGalleryItemNotFound = errors.New("gallery item not found")
)
