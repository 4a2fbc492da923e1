package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity anchor. Accounts are provisioned on the first
// successful login at the external identity provider; they are never deleted.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
