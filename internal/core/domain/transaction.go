package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the direction of a balance change.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
)

// TransactionStatus represents the lifecycle state of a transaction.
// Deposits are created pending and may move to success; transfer records are
// created already in a terminal state.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction is an immutable audit record of a balance change attempt.
// Reference is globally unique and acts as the idempotency key for
// settlement and client polling.
type Transaction struct {
	ID                    uuid.UUID         `json:"id"`
	Reference             string            `json:"reference"`
	Type                  TransactionType   `json:"type"`
	Amount                int64             `json:"amount"` // minor units, always positive
	Status                TransactionStatus `json:"status"`
	RecipientWalletNumber *string           `json:"recipient_wallet_number,omitempty"`
	SenderWalletNumber    *string           `json:"sender_wallet_number,omitempty"`
	WalletID              uuid.UUID         `json:"wallet_id"`
	CreatedAt             time.Time         `json:"created_at"`
}

// IsSettled returns true once the transaction has been credited.
func (t *Transaction) IsSettled() bool {
	return t.Status == TransactionStatusSuccess
}

// NewReference generates a globally unique transaction reference.
func NewReference() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a UUID.
		return "TXN_" + uuid.NewString()
	}
	return "TXN_" + hex.EncodeToString(b)
}
