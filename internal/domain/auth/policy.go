package auth

// lookupKind distinguishes the outcomes of a profile lookup.
type lookupKind int

const (
	lookupNoProfile lookupKind = iota
	lookupRoleAssigned
)

// ProfileLookup is the result of resolving the AuthorizationProfile for an identity.
// It is either NoProfile (missing record or failed lookup) or RoleAssigned.
type ProfileLookup struct {
	kind    lookupKind
	profile Profile
	cause   error
}

// NoProfile builds a lookup outcome with no usable profile. cause is nil when the
// record simply does not exist.
func NoProfile(cause error) ProfileLookup {
	return ProfileLookup{kind: lookupNoProfile, cause: cause}
}

// RoleAssigned builds a lookup outcome carrying the resolved profile.
func RoleAssigned(p Profile) ProfileLookup {
	return ProfileLookup{kind: lookupRoleAssigned, profile: p}
}

// Profile returns the resolved profile and true for RoleAssigned outcomes.
func (l ProfileLookup) Profile() (Profile, bool) {
	if l.kind != lookupRoleAssigned {
		return Profile{}, false
	}
	return l.profile, true
}

// Cause returns the lookup error for a failed NoProfile outcome.
func (l ProfileLookup) Cause() error { return l.cause }

// DenialReason explains why a policy rejected a lookup.
type DenialReason int

const (
	DenialNone DenialReason = iota
	DenialProfileMissing
	DenialLookupFailed
	DenialWrongRole
)

func (r DenialReason) String() string {
	switch r {
	case DenialNone:
		return "none"
	case DenialProfileMissing:
		return "profile_missing"
	case DenialLookupFailed:
		return "lookup_failed"
	case DenialWrongRole:
		return "wrong_role"
	default:
		return "unknown"
	}
}

// Verdict is the result of applying a RolePolicy.
type Verdict struct {
	Admitted bool
	Profile  Profile
	Reason   DenialReason
}

// RolePolicy admits only profiles that hold exactly the required role.
type RolePolicy struct {
	Required Role
}

// AdminOnly is the portal's access policy.
var AdminOnly = RolePolicy{Required: RoleAdmin}

// Evaluate applies the policy to a lookup outcome.
// Missing profiles, failed lookups and wrong roles are all rejections.
func (p RolePolicy) Evaluate(l ProfileLookup) Verdict {
	prof, ok := l.Profile()
	if !ok {
		if l.cause != nil {
			return Verdict{Reason: DenialLookupFailed}
		}
		return Verdict{Reason: DenialProfileMissing}
	}
	if !prof.HasRole(p.Required) {
		return Verdict{Profile: prof, Reason: DenialWrongRole}
	}
	return Verdict{Admitted: true, Profile: prof}
}
