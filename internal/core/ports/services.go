package ports

import (
	"context"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// HashService handles one-way hashing of API key secrets.
type HashService interface {
	Hash(secret string) (string, error)
	Compare(secret string, hash string) bool
}

// SignatureService verifies webhook payloads (HMAC-SHA512 over raw bytes,
// constant-time comparison against the hex-encoded header value).
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// TokenService handles session JWT operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed session token claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// SettlementCache is a best-effort fast path for webhook idempotency.
// The transaction row in the database remains the source of truth.
type SettlementCache interface {
	IsSettled(ctx context.Context, reference string) (bool, error)
	MarkSettled(ctx context.Context, reference string, ttl time.Duration) error
}

// PaymentProvider is the outbound payment processor client.
type PaymentProvider interface {
	// InitializeTransaction registers a pending charge and returns a
	// redirectable checkout. Amount is in minor units.
	InitializeTransaction(ctx context.Context, email string, amount int64, reference string) (*ProviderCheckout, error)
}

// ProviderCheckout is the processor's redirectable payment handle, passed
// through to the caller verbatim.
type ProviderCheckout struct {
	AuthorizationURL string
	AccessCode       string
}

// --- Service Ports (Business Logic) ---

// AuthService provisions identities delivered by the external provider.
type AuthService interface {
	// HandleExternalLogin finds or creates the user (with wallet) for a
	// verified external profile and issues a session token.
	HandleExternalLogin(ctx context.Context, profile ExternalProfile) (*LoginResult, error)
}

// ExternalProfile is an identity already verified by the external provider.
type ExternalProfile struct {
	Email     string
	FirstName string
	LastName  string
	Picture   string
}

// LoginResult carries the issued session token.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// KeyService is the API key lifecycle manager.
type KeyService interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateKeyRequest) (*CreatedKey, error)
	Rollover(ctx context.Context, userID uuid.UUID, req RolloverKeyRequest) (*CreatedKey, error)
	Revoke(ctx context.Context, keyID, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	// Validate matches a raw secret against stored hashes. Revoked, expired
	// and unknown keys are indistinguishable: all return (nil, nil, nil).
	Validate(ctx context.Context, rawSecret string) (*domain.User, domain.PermissionSet, error)
}

// CreateKeyRequest holds validated input for key issuance.
type CreateKeyRequest struct {
	Name        string
	Permissions []domain.Permission
	Expiry      string // 1H, 1D, 1M, 1Y
}

// RolloverKeyRequest holds validated input for key rollover.
type RolloverKeyRequest struct {
	ExpiredKeyID uuid.UUID
	Expiry       string
}

// CreatedKey is the one-time view of a freshly issued key, including the
// plaintext secret. The secret is not retrievable again.
type CreatedKey struct {
	ID          uuid.UUID
	RawSecret   string
	Name        string
	Permissions domain.PermissionSet
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// LedgerService is the wallet ledger engine.
type LedgerService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	InitializeDeposit(ctx context.Context, userID uuid.UUID, amount int64) (*DepositInit, error)
	HandleWebhook(ctx context.Context, rawPayload []byte, signature string) error
	GetDepositStatus(ctx context.Context, reference string) (*DepositStatus, error)
	Transfer(ctx context.Context, userID uuid.UUID, recipientWalletNumber string, amount int64) error
	GetTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
}

// DepositInit is the result of deposit initiation.
type DepositInit struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// DepositStatus reports a deposit transaction's current state.
type DepositStatus struct {
	Reference string
	Status    domain.TransactionStatus
	Amount    int64
}
