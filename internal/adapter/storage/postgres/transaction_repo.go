package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, reference, type, amount, status,
		recipient_wallet_number, sender_wallet_number, wallet_id, created_at`

// Create inserts a new ledger record within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, reference, type, amount, status,
		recipient_wallet_number, sender_wallet_number, wallet_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Reference, t.Type, t.Amount, t.Status,
		t.RecipientWalletNumber, t.SenderWalletNumber, t.WalletID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByReference fetches a transaction by its unique reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE reference = $1`, transactionColumns)

	return r.scanTransaction(r.pool.QueryRow(ctx, query, reference))
}

// GetByReferenceForUpdate fetches a transaction by reference with pessimistic
// locking. This MUST be called within a transaction.
func (r *TransactionRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE reference = $1 FOR UPDATE`, transactionColumns)

	return r.scanTransaction(tx.QueryRow(ctx, query, reference))
}

// GetDepositByReference fetches a deposit transaction by reference.
func (r *TransactionRepo) GetDepositByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE reference = $1 AND type = $2`, transactionColumns)

	return r.scanTransaction(r.pool.QueryRow(ctx, query, reference, domain.TransactionTypeDeposit))
}

// UpdateStatus updates a transaction's status within a database transaction.
// Pending to success is the only transition the ledger performs.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1 WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// ListByWallet fetches a wallet's ledger records, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC`, transactionColumns)

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.Reference, &t.Type, &t.Amount, &t.Status,
			&t.RecipientWalletNumber, &t.SenderWalletNumber, &t.WalletID, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.Reference, &t.Type, &t.Amount, &t.Status,
		&t.RecipientWalletNumber, &t.SenderWalletNumber, &t.WalletID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
