package domain

import "strings"

// GuestPrefix marks guest-session identifiers.
const GuestPrefix = "guest_"

// Identity is the resolved caller of a request: a verified registered user
// or a guest session, never both.
type Identity struct {
	UserID  string `json:"user_id,omitempty"`
	GuestID string `json:"guest_id,omitempty"`
}

// UserIdentity builds a registered-user identity.
func UserIdentity(userID string) Identity { return Identity{UserID: userID} }

// GuestIdentity builds a guest identity.
func GuestIdentity(guestID string) Identity { return Identity{GuestID: guestID} }

// IsGuest reports whether the caller is a guest session.
func (i Identity) IsGuest() bool { return i.UserID == "" && i.GuestID != "" }

// IsZero reports whether no identity was resolved.
func (i Identity) IsZero() bool { return i.UserID == "" && i.GuestID == "" }

// ID is the key used for rate limiting, idempotency scoping and logs.
func (i Identity) ID() string {
	if i.UserID != "" {
		return i.UserID
	}
	return i.GuestID
}

// IsGuestID reports whether s carries the guest prefix.
func IsGuestID(s string) bool {
	return strings.HasPrefix(s, GuestPrefix) && len(s) > len(GuestPrefix)
}
