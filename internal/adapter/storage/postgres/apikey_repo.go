package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// APIKeyRepo implements ports.APIKeyRepository. Permissions are stored as a
// text array; the raw secret never reaches this layer, only its bcrypt hash
// and the clear lookup prefix.
type APIKeyRepo struct {
	pool Pool
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(pool Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

const apiKeyColumns = `id, key_prefix, key_hash, name, permissions, expires_at, revoked, user_id, created_at`

// Create inserts a new key record.
func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	query := `INSERT INTO api_keys (id, key_prefix, key_hash, name, permissions, expires_at, revoked, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		k.ID, k.KeyPrefix, k.KeyHash, k.Name, permissionsToStrings(k.Permissions),
		k.ExpiresAt, k.Revoked, k.UserID, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByID fetches a key scoped to its owner.
func (r *APIKeyRepo) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.APIKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_keys WHERE id = $1 AND user_id = $2`, apiKeyColumns)

	return r.scanAPIKey(r.pool.QueryRow(ctx, query, id, userID))
}

// ListByUser fetches all of a user's keys, newest first.
func (r *APIKeyRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, apiKeyColumns)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return r.collectKeys(rows)
}

// CountActive counts a user's non-revoked keys (expired ones included: they
// hold a quota slot until revoked).
func (r *APIKeyRepo) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM api_keys WHERE user_id = $1 AND revoked = FALSE`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active api keys: %w", err)
	}
	return count, nil
}

// FindByPrefix fetches candidate key records sharing a secret prefix for
// hash matching during validation.
func (r *APIKeyRepo) FindByPrefix(ctx context.Context, prefix string) ([]domain.APIKey, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_keys WHERE key_prefix = $1`, apiKeyColumns)

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("find api keys by prefix: %w", err)
	}
	defer rows.Close()

	return r.collectKeys(rows)
}

// SetRevoked flips the revoked flag for an owned key. Returns false when no
// key matches id and owner. Re-revoking is a silent success.
func (r *APIKeyRepo) SetRevoked(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `UPDATE api_keys SET revoked = TRUE WHERE id = $1 AND user_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *APIKeyRepo) collectKeys(rows pgx.Rows) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		var perms []string
		err := rows.Scan(
			&k.ID, &k.KeyPrefix, &k.KeyHash, &k.Name, &perms,
			&k.ExpiresAt, &k.Revoked, &k.UserID, &k.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		k.Permissions = stringsToPermissions(perms)
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api key rows: %w", err)
	}
	return keys, nil
}

func (r *APIKeyRepo) scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	k := &domain.APIKey{}
	var perms []string
	err := row.Scan(
		&k.ID, &k.KeyPrefix, &k.KeyHash, &k.Name, &perms,
		&k.ExpiresAt, &k.Revoked, &k.UserID, &k.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	k.Permissions = stringsToPermissions(perms)
	return k, nil
}

func permissionsToStrings(perms domain.PermissionSet) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func stringsToPermissions(raw []string) domain.PermissionSet {
	out := make(domain.PermissionSet, len(raw))
	for i, s := range raw {
		out[i] = domain.Permission(s)
	}
	return out
}
