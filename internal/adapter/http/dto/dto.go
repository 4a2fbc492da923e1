package dto

import (
	"custodial-wallet/internal/core/domain"
)

// ExternalLoginRequest carries a profile already verified by the external
// identity provider.
type ExternalLoginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name,omitempty" binding:"max=100"`
	LastName  string `json:"last_name,omitempty" binding:"max=100"`
	Picture   string `json:"picture,omitempty" binding:"omitempty,safe_url"`
}

// ExternalLoginResponse is the issued session token.
type ExternalLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
}

// DepositRequest is the request body for deposit initiation.
// Amount is in minor units.
type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// DepositResponse is the redirectable checkout returned by deposit initiation.
type DepositResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// DepositStatusResponse is the result of a deposit status poll.
type DepositStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// BalanceResponse is the wallet balance in minor units.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// TransferRequest is the request body for a peer transfer.
type TransferRequest struct {
	WalletNumber string `json:"wallet_number" binding:"required,safe_id"`
	Amount       int64  `json:"amount" binding:"required"`
}

// TransferResponse acknowledges a completed transfer.
type TransferResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TransactionResponse is one ledger entry; only the counterparty field
// relevant to the entry's direction is populated.
type TransactionResponse struct {
	Type                  string  `json:"type"`
	Amount                int64   `json:"amount"`
	Status                string  `json:"status"`
	Reference             string  `json:"reference"`
	RecipientWalletNumber *string `json:"recipient_wallet_number,omitempty"`
	SenderWalletNumber    *string `json:"sender_wallet_number,omitempty"`
	CreatedAt             string  `json:"created_at"`
}

// CreateKeyRequest is the request body for API key issuance.
type CreateKeyRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=100"`
	Permissions []string `json:"permissions" binding:"required,min=1,dive,oneof=deposit transfer read"`
	Expiry      string   `json:"expiry" binding:"required,oneof=1H 1D 1M 1Y"`
}

// RolloverKeyRequest is the request body for API key rollover.
type RolloverKeyRequest struct {
	ExpiredKeyID string `json:"expired_key_id" binding:"required,uuid"`
	Expiry       string `json:"expiry" binding:"required,oneof=1H 1D 1M 1Y"`
}

// CreatedKeyResponse is the one-time view of a freshly issued key. The
// api_key field is the only place the plaintext secret ever appears.
type CreatedKeyResponse struct {
	ID          string   `json:"id"`
	APIKey      string   `json:"api_key"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	ExpiresAt   string   `json:"expires_at"`
	CreatedAt   string   `json:"created_at"`
}

// KeyResponse is the listing view of a key; no secret material.
type KeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	KeyPrefix string `json:"key_prefix"`
	ExpiresAt string `json:"expires_at"`
	Revoked   bool   `json:"revoked"`
	CreatedAt string `json:"created_at"`
}

// RevokeResponse acknowledges a key revocation.
type RevokeResponse struct {
	Message string `json:"message"`
}

// PermissionStrings converts a permission set for JSON output.
func PermissionStrings(perms domain.PermissionSet) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
