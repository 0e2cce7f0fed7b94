package auth

// State is the position of a client session in the authorization bootstrap.
type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthorizingProfile
	StateAuthorized
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthorizingProfile:
		return "authorizing_profile"
	case StateAuthorized:
		return "authorized"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Settled reports whether s is a resting outcome of the bootstrap.
func (s State) Settled() bool {
	return s == StateUnauthenticated || s == StateAuthorized
}

// Snapshot is a read-only copy of a client session.
// Identity and Profile are nil when absent.
type Snapshot struct {
	Identity *Identity `json:"identity,omitempty"`
	Profile  *Profile  `json:"profile,omitempty"`
	Loading  bool      `json:"loading"`
	State    State     `json:"-"`
}

// Authenticated reports whether an identity is held.
func (s Snapshot) Authenticated() bool { return s.Identity != nil }

// Clone returns a deep copy so callers can't mutate the owner's state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Loading: s.Loading, State: s.State}
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	if s.Profile != nil {
		p := *s.Profile
		if p.LastLogin != nil {
			t := *p.LastLogin
			p.LastLogin = &t
		}
		out.Profile = &p
	}
	return out
}
