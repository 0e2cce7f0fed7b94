package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below; RoleNone means no role is assigned.
type Role string

const (
	RoleNone    Role = ""
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole converts a stored role string into a Role.
// Unknown values map to RoleNone so they can never satisfy a role check.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return Role(s)
	default:
		return RoleNone
	}
}

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// Identity represents the authenticated principal returned by the identity provider.
// Token is opaque to everything except the provider that issued it.
type Identity struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the credential has lapsed at now. A zero ExpiresAt never lapses.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// SameSession reports whether two identities carry the same user and credential.
func (i Identity) SameSession(other Identity) bool {
	return i.UserID == other.UserID && i.Token == other.Token
}

// Profile is the application-level authorization record tied to an Identity.
// ID equals the Identity's UserID.
type Profile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name,omitempty"`
	ContactNumber string     `json:"contact_number,omitempty"`
	Role          Role       `json:"role"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// HasRole reports whether the profile carries exactly the given role.
func (p Profile) HasRole(r Role) bool { return r != RoleNone && p.Role == r }

// SessionEvent names a change reported by the identity provider.
type SessionEvent string

const (
	EventInitialSession SessionEvent = "INITIAL_SESSION"
	EventSignedIn       SessionEvent = "SIGNED_IN"
	EventSignedOut      SessionEvent = "SIGNED_OUT"
	EventTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
	EventUserUpdated    SessionEvent = "USER_UPDATED"
)

// SessionChange is a single session-change notification from the identity provider.
// Identity is nil when the provider reports that no session exists.
type SessionChange struct {
	Event    SessionEvent `json:"event"`
	Identity *Identity    `json:"identity,omitempty"`
}

// Severity is the visual weight of a user-facing notification.
type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

// Notification is a transient user-facing message.
type Notification struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}
