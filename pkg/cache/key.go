package cache

import "strings"

// Auth epochs. An epoch is the cache-key component that changes when the
// authentication state materially changes, so the same logical resource
// fetched under different identities never shares an entry.
const (
	// EpochAny is used by resources whose content does not depend on identity.
	EpochAny = "any"

	// EpochPending is used while the authentication status is still resolving.
	// Entries fetched speculatively under this epoch become unreachable once
	// the real epoch is known and age out of the store.
	EpochPending = "pending"

	// EpochAnon is used for resolved, unauthenticated sessions.
	EpochAnon = "anon"

	// epochAuthPrefix prefixes the session id for authenticated sessions.
	epochAuthPrefix = "auth:"
)

// Session is the opaque identity exposed by the authentication provider.
type Session struct {
	ID string
}

// AuthStatus is the authentication provider's view at a point in time.
// IsLoading means the status is still resolving; Session is nil for
// anonymous sessions.
type AuthStatus struct {
	IsLoading bool
	Session   *Session
}

// Epoch returns the auth epoch for this status.
func (a AuthStatus) Epoch() string {
	switch {
	case a.IsLoading:
		return EpochPending
	case a.Session == nil:
		return EpochAnon
	default:
		return epochAuthPrefix + a.Session.ID
	}
}

// Key identifies one cached paginated collection. Two keys are equal iff all
// three components are equal, which makes Key usable directly as a map key.
type Key struct {
	// Resource is the collection name (e.g. "feed", "bookmarks").
	Resource string

	// Variant is the sub-selector within the resource (e.g. "latest",
	// "trending"). Empty for resources with no variants.
	Variant string

	// AuthEpoch scopes the entry to an authentication state.
	AuthEpoch string
}

// Resolve derives the cache key for a resource variant under the given auth
// status. Deterministic and pure. Identity-dependent resources get a distinct
// epoch for each of pending, anonymous, and per-session authenticated states;
// identity-independent resources always resolve to EpochAny.
func Resolve(resource, variant string, identity bool, auth AuthStatus) Key {
	epoch := EpochAny
	if identity {
		epoch = auth.Epoch()
	}
	return Key{Resource: resource, Variant: variant, AuthEpoch: epoch}
}

// String generates a deterministic string form, used for store indexing,
// snapshot keys, and log fields.
//
// Format: feedcache:<resource>:<variant>:<epoch>
func (k Key) String() string {
	return strings.Join([]string{"feedcache", k.Resource, k.Variant, k.AuthEpoch}, ":")
}
