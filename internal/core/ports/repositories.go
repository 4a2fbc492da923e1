package ports

import (
	"context"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside transaction blocks; the ForUpdate
// variants take a row lock and must only be called within a transaction.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByWalletNumber(ctx context.Context, walletNumber string) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
}

// TransactionRepository defines persistence operations for ledger records.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	// GetByReferenceForUpdate locks the transaction row; it must only be
	// called within a transaction.
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error)
	GetDepositByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
}

// APIKeyRepository is the credential store: hashed key records with
// permissions and expiry. It enforces nothing itself; quotas and expiry are
// the key service's job.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.APIKey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
	// FindByPrefix returns all key records sharing a secret prefix, with
	// owner attached, for hash matching during validation.
	FindByPrefix(ctx context.Context, prefix string) ([]domain.APIKey, error)
	SetRevoked(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
