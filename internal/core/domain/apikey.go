package domain

import (
	"time"

	"github.com/google/uuid"
)

// Permission gates which ledger operations an API key may invoke.
type Permission string

const (
	PermissionDeposit  Permission = "deposit"
	PermissionTransfer Permission = "transfer"
	PermissionRead     Permission = "read"
)

// IsValid reports whether p is one of the known permissions.
func (p Permission) IsValid() bool {
	switch p {
	case PermissionDeposit, PermissionTransfer, PermissionRead:
		return true
	}
	return false
}

// AllPermissions is the full fixed permission set. Session-token identities
// are always granted all of it.
func AllPermissions() []Permission {
	return []Permission{PermissionDeposit, PermissionTransfer, PermissionRead}
}

// PermissionSet is an ordered set of granted permissions.
type PermissionSet []Permission

// Contains reports whether the set grants p.
func (s PermissionSet) Contains(p Permission) bool {
	for _, granted := range s {
		if granted == p {
			return true
		}
	}
	return false
}

// APIKey is a long-lived credential. Only a bcrypt hash of the raw secret is
// stored; the plaintext is returned to the caller exactly once at creation or
// rollover. KeyPrefix is the leading hex of the secret body and is the only
// part kept in the clear, used to index validation lookups.
type APIKey struct {
	ID          uuid.UUID     `json:"id"`
	KeyPrefix   string        `json:"key_prefix"`
	KeyHash     string        `json:"-"` // bcrypt, never exposed
	Name        string        `json:"name"`
	Permissions PermissionSet `json:"permissions"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Revoked     bool          `json:"revoked"`
	UserID      uuid.UUID     `json:"user_id"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsExpired uses an exclusive comparison: the key is usable up to and
// including ExpiresAt itself.
func (k *APIKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// IsUsable reports whether the key may still authenticate requests.
func (k *APIKey) IsUsable(now time.Time) bool {
	return !k.Revoked && !k.IsExpired(now)
}
