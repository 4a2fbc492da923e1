package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's balance in minor currency units (kobo).
// Balance is mutated only by the ledger service inside a database
// transaction holding the wallet row lock, and must never commit below zero.
type Wallet struct {
	ID           uuid.UUID `json:"id"`
	WalletNumber string    `json:"wallet_number"` // 13-digit public transfer address
	Balance      int64     `json:"balance"`
	UserID       uuid.UUID `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
